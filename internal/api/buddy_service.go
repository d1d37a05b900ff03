package api

import (
	"context"
	"fmt"

	"github.com/matheus3301/imcore/internal/blist"
	"github.com/matheus3301/imcore/internal/core"
	"google.golang.org/grpc"
)

const buddyServiceName = "imcore.v1.BuddyService"

// BuddyServer exposes the local buddy list.
type BuddyServer interface {
	List(context.Context, *Empty) (*ListBuddiesResponse, error)
	Add(context.Context, *AddBuddyRequest) (*Buddy, error)
	Remove(context.Context, *BuddyRef) (*Empty, error)
	Alias(context.Context, *AliasBuddyRequest) (*Buddy, error)
}

var buddyServiceDesc = grpc.ServiceDesc{
	ServiceName: buddyServiceName,
	HandlerType: (*BuddyServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(buddyServiceName, "List", BuddyServer.List),
		unary(buddyServiceName, "Add", BuddyServer.Add),
		unary(buddyServiceName, "Remove", BuddyServer.Remove),
		unary(buddyServiceName, "Alias", BuddyServer.Alias),
	},
}

// BuddyService implements BuddyServer.
type BuddyService struct {
	core *core.Core
}

// NewBuddyService creates the buddy service.
func NewBuddyService(c *core.Core) *BuddyService {
	return &BuddyService{core: c}
}

func (s *BuddyService) List(ctx context.Context, _ *Empty) (*ListBuddiesResponse, error) {
	resp := &ListBuddiesResponse{}
	err := s.core.Do(ctx, func() {
		l := s.core.Buddies
		for _, g := range l.Groups() {
			counts := l.Counts(g)
			group := Group{
				Name:    l.Name(g),
				Total:   counts.Total,
				Current: counts.Current,
				Online:  counts.Online,
			}
			for _, c := range l.Children(g) {
				contact := Contact{Name: l.DisplayName(c)}
				for _, b := range l.Children(c) {
					contact.Buddies = append(contact.Buddies, buddyToAPI(l, b))
				}
				group.Contacts = append(group.Contacts, contact)
			}
			resp.Groups = append(resp.Groups, group)
		}
	})
	if err != nil {
		return nil, toStatus("list buddies", err)
	}
	return resp, nil
}

func (s *BuddyService) Add(ctx context.Context, req *AddBuddyRequest) (*Buddy, error) {
	if req.AccountID == "" || req.Name == "" {
		return nil, toStatus("add buddy", fmt.Errorf("account and name are required: %w", errInvalid))
	}
	var out Buddy
	var opErr error
	err := s.core.Do(ctx, func() {
		if s.core.Accounts.FindByID(req.AccountID) == nil {
			opErr = fmt.Errorf("%q: %w", req.AccountID, errAccountNotFound)
			return
		}
		l := s.core.Buddies
		g := blist.None
		if req.Group != "" {
			if g = l.FindGroup(req.Group); g == blist.None {
				after := blist.None
				if groups := l.Groups(); len(groups) > 0 {
					after = groups[len(groups)-1]
				}
				g = l.AddGroup(req.Group, after)
			}
		}
		b, err := l.AddBuddy(req.AccountID, req.Name, req.Alias, blist.None, g)
		if err != nil {
			opErr = err
			return
		}
		out = buddyToAPI(l, b)
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		return nil, toStatus("add buddy", err)
	}
	return &out, nil
}

func (s *BuddyService) Remove(ctx context.Context, req *BuddyRef) (*Empty, error) {
	err := s.withBuddy(ctx, req.AccountID, req.Name, func(b blist.NodeID) error {
		return s.core.Buddies.RemoveBuddy(b)
	})
	if err != nil {
		return nil, toStatus("remove buddy", err)
	}
	return &Empty{}, nil
}

func (s *BuddyService) Alias(ctx context.Context, req *AliasBuddyRequest) (*Buddy, error) {
	var out Buddy
	err := s.withBuddy(ctx, req.AccountID, req.Name, func(b blist.NodeID) error {
		if err := s.core.Buddies.SetAlias(b, req.Alias); err != nil {
			return err
		}
		out = buddyToAPI(s.core.Buddies, b)
		return nil
	})
	if err != nil {
		return nil, toStatus("alias buddy", err)
	}
	return &out, nil
}

func (s *BuddyService) withBuddy(ctx context.Context, accountID, name string, f func(blist.NodeID) error) error {
	var opErr error
	err := s.core.Do(ctx, func() {
		b := s.core.Buddies.FindBuddy(accountID, name)
		if b == blist.None {
			opErr = fmt.Errorf("%s/%s: %w", accountID, name, errBuddyNotFound)
			return
		}
		opErr = f(b)
	})
	if err != nil {
		return err
	}
	return opErr
}

func buddyToAPI(l *blist.List, b blist.NodeID) Buddy {
	accountID := l.BuddyAccount(b)
	return Buddy{
		AccountID: accountID,
		Name:      l.Name(b),
		Alias:     l.Alias(b),
		Online:    l.Presence(b).IsOnline(),
		Visible:   l.IsAccountVisible(accountID),
	}
}
