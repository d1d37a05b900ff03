package model

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/tui/client"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// refreshEvery bounds how often bursts of daemon events trigger a reload.
const refreshEvery = 250 * time.Millisecond

const historyLimit = 100

// Thread is the conversation open in the message view.
type Thread struct {
	AccountID      string
	ConversationID string
	Name           string
	Title          string
	Typing         string
	Messages       []api.Message
}

// ViewModel caches daemon state and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client        *client.Client
	status        *api.StatusResponse
	accounts      []api.Account
	groups        []api.Group
	conversations []api.Conversation
	requests      []api.Request
	thread        *Thread
	lastEvent     string

	dirty     chan struct{}
	refreshCh chan struct{}
}

// NewViewModel creates a view model backed by c.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		dirty:     make(chan struct{}, 1),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh signals that cached state changed.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

func (vm *ViewModel) markDirty() {
	select {
	case vm.dirty <- struct{}{}:
	default:
	}
}

// Refresh reloads every list from the daemon.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	var (
		status   *api.StatusResponse
		accounts *api.ListAccountsResponse
		buddies  *api.ListBuddiesResponse
		convs    *api.ListConversationsResponse
		reqs     *api.ListRequestsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { status, err = vm.client.Core.Status(gctx); return })
	g.Go(func() (err error) { accounts, err = vm.client.Accounts.List(gctx); return })
	g.Go(func() (err error) { buddies, err = vm.client.Buddies.List(gctx); return })
	g.Go(func() (err error) { convs, err = vm.client.Conversations.List(gctx, ""); return })
	g.Go(func() (err error) { reqs, err = vm.client.Requests.List(gctx); return })
	if err := g.Wait(); err != nil {
		return err
	}

	vm.mu.Lock()
	vm.status = status
	vm.accounts = accounts.Accounts
	vm.groups = buddies.Groups
	vm.conversations = convs.Conversations
	vm.requests = reqs.Requests
	if t := vm.thread; t != nil {
		for _, c := range vm.conversations {
			if c.AccountID == t.AccountID && c.ID == t.ConversationID {
				t.Typing = c.Typing
				t.Title = c.Title
			}
		}
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// Run watches daemon events and reloads state, at most once per
// refreshEvery, until ctx ends or the stream breaks.
func (vm *ViewModel) Run(ctx context.Context) error {
	stream, err := vm.client.Core.Watch(ctx, "")
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			ev, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			vm.apply(ev)
			vm.markDirty()
		}
	})
	g.Go(func() error {
		limiter := rate.NewLimiter(rate.Every(refreshEvery), 1)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-vm.dirty:
			}
			if err := limiter.Wait(gctx); err != nil {
				return nil
			}
			if err := vm.Refresh(gctx); err != nil && gctx.Err() == nil {
				return err
			}
		}
	})
	return g.Wait()
}

// apply folds events that the list reload does not cover into the
// cache: new messages for the open thread.
func (vm *ViewModel) apply(ev *api.Event) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.lastEvent = ev.Kind

	if ev.Kind != "conversation.message" || vm.thread == nil {
		return
	}
	var p struct {
		MsgID          string
		AccountID      string
		ConversationID string
		Author         string
		Body           string
		Outgoing       bool
		Flags          int
		Timestamp      time.Time
	}
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return
	}
	t := vm.thread
	if p.AccountID != t.AccountID || p.ConversationID != t.ConversationID {
		return
	}
	for _, m := range t.Messages {
		if m.MsgID == p.MsgID {
			return
		}
	}
	// Messages are kept newest first, as History returns them.
	t.Messages = append([]api.Message{{
		MsgID:          p.MsgID,
		AccountID:      p.AccountID,
		ConversationID: p.ConversationID,
		Author:         p.Author,
		Body:           p.Body,
		Outgoing:       p.Outgoing,
		Flags:          p.Flags,
		TimestampMs:    p.Timestamp.UnixMilli(),
	}}, t.Messages...)
}

// OpenThread loads the history of a conversation and makes it current.
func (vm *ViewModel) OpenThread(ctx context.Context, c api.Conversation) error {
	resp, err := vm.client.Conversations.History(ctx, &api.HistoryRequest{
		AccountID:      c.AccountID,
		ConversationID: c.ID,
		Limit:          historyLimit,
	})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.thread = &Thread{
		AccountID:      c.AccountID,
		ConversationID: c.ID,
		Name:           c.Name,
		Title:          c.Title,
		Typing:         c.Typing,
		Messages:       resp.Messages,
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// CloseThread forgets the open conversation.
func (vm *ViewModel) CloseThread() {
	vm.mu.Lock()
	vm.thread = nil
	vm.mu.Unlock()
}

// SendText sends body to the open thread. It reports whether the
// message was queued for later delivery.
func (vm *ViewModel) SendText(ctx context.Context, body string) (bool, error) {
	vm.mu.RLock()
	t := vm.thread
	vm.mu.RUnlock()
	if t == nil {
		return false, errors.New("no conversation open")
	}
	resp, err := vm.client.Conversations.Send(ctx, &api.SendRequest{
		AccountID: t.AccountID,
		To:        t.Name,
		Body:      body,
	})
	if err != nil {
		return false, err
	}
	return resp.Queued, nil
}

// SetTyping reports the local typing state for the open thread.
func (vm *ViewModel) SetTyping(ctx context.Context, state string) error {
	vm.mu.RLock()
	t := vm.thread
	vm.mu.RUnlock()
	if t == nil {
		return nil
	}
	_, err := vm.client.Conversations.SetTyping(ctx, &api.SetTypingRequest{
		AccountID: t.AccountID,
		To:        t.Name,
		State:     state,
	})
	return err
}

// Search runs a full text search over the message history.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]api.Message, error) {
	resp, err := vm.client.Conversations.Search(ctx, &api.SearchRequest{Query: query, Limit: 50})
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Status returns the last daemon status.
func (vm *ViewModel) Status() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Accounts returns the cached accounts.
func (vm *ViewModel) Accounts() []api.Account {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.accounts
}

// Account returns the cached account with id.
func (vm *ViewModel) Account(id string) (api.Account, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, a := range vm.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return api.Account{}, false
}

// Groups returns the cached buddy list.
func (vm *ViewModel) Groups() []api.Group {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.groups
}

// Conversations returns the cached open conversations.
func (vm *ViewModel) Conversations() []api.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// FindConversation returns the open conversation whose name or title
// matches query, ignoring case.
func (vm *ViewModel) FindConversation(query string) (api.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if strings.EqualFold(c.Name, query) || strings.EqualFold(c.Title, query) {
			return c, true
		}
	}
	return api.Conversation{}, false
}

// Requests returns the pending requests, oldest first.
func (vm *ViewModel) Requests() []api.Request {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.requests
}

// Thread returns a copy of the open conversation, or nil.
func (vm *ViewModel) Thread() *Thread {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.thread == nil {
		return nil
	}
	t := *vm.thread
	t.Messages = append([]api.Message(nil), vm.thread.Messages...)
	return &t
}

// LastEvent returns the kind of the most recent daemon event.
func (vm *ViewModel) LastEvent() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.lastEvent
}
