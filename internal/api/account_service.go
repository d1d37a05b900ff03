package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/core"
	"github.com/matheus3301/imcore/internal/protocol"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const accountServiceName = "imcore.v1.AccountService"

// AccountServer manages the profile's accounts.
type AccountServer interface {
	List(context.Context, *Empty) (*ListAccountsResponse, error)
	Add(context.Context, *AddAccountRequest) (*Account, error)
	Remove(context.Context, *AccountRef) (*Empty, error)
	SetEnabled(context.Context, *SetEnabledRequest) (*Account, error)
	Connect(context.Context, *AccountRef) (*Account, error)
	Disconnect(context.Context, *AccountRef) (*Account, error)
	SetSetting(context.Context, *SetSettingRequest) (*Account, error)
	SetStatus(context.Context, *SetStatusRequest) (*Account, error)
	Log(context.Context, *AccountLogRequest) (*AccountLogResponse, error)
}

var accountServiceDesc = grpc.ServiceDesc{
	ServiceName: accountServiceName,
	HandlerType: (*AccountServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(accountServiceName, "List", AccountServer.List),
		unary(accountServiceName, "Add", AccountServer.Add),
		unary(accountServiceName, "Remove", AccountServer.Remove),
		unary(accountServiceName, "SetEnabled", AccountServer.SetEnabled),
		unary(accountServiceName, "Connect", AccountServer.Connect),
		unary(accountServiceName, "Disconnect", AccountServer.Disconnect),
		unary(accountServiceName, "SetSetting", AccountServer.SetSetting),
		unary(accountServiceName, "SetStatus", AccountServer.SetStatus),
		unary(accountServiceName, "Log", AccountServer.Log),
	},
}

// AccountService implements AccountServer.
type AccountService struct {
	core *core.Core
}

// NewAccountService creates the account service.
func NewAccountService(c *core.Core) *AccountService {
	return &AccountService{core: c}
}

func (s *AccountService) List(ctx context.Context, _ *Empty) (*ListAccountsResponse, error) {
	resp := &ListAccountsResponse{}
	err := s.core.Do(ctx, func() {
		for _, a := range s.core.Accounts.All() {
			resp.Accounts = append(resp.Accounts, accountToAPI(a))
		}
	})
	if err != nil {
		return nil, toStatus("list accounts", err)
	}
	return resp, nil
}

func (s *AccountService) Add(ctx context.Context, req *AddAccountRequest) (*Account, error) {
	if req.Username == "" || req.ProtocolID == "" {
		return nil, toStatus("add account", fmt.Errorf("username and protocol are required: %w", errInvalid))
	}
	if _, ok := s.core.Protocols.Find(req.ProtocolID); !ok {
		return nil, toStatus("add account", fmt.Errorf("%s: %w", req.ProtocolID, protocol.ErrNotFound))
	}

	var out Account
	var opErr error
	err := s.core.Do(ctx, func() {
		m := s.core.Accounts
		if m.Find(req.Username, req.ProtocolID) != nil {
			opErr = fmt.Errorf("%s on %s already exists: %w", req.Username, req.ProtocolID, account.ErrPrecondition)
			return
		}
		a := m.NewAccount(req.Username, req.ProtocolID)
		a.SetAlias(req.Alias)
		a.SetRememberPassword(req.Remember)
		if req.Password != "" {
			a.SetPassword(req.Password)
			if req.Remember {
				s.core.Credentials.WritePassword(context.Background(), a.ID(), req.Password, func(err error) {
					if err != nil {
						s.core.Logger.Warn("failed to store password", zap.String("account", req.Username), zap.Error(err))
					}
				})
			}
		}
		m.Add(a)
		if req.Enabled {
			a.SetEnabled(true)
		}
		out = accountToAPI(a)
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		return nil, toStatus("add account", err)
	}
	return &out, nil
}

func (s *AccountService) Remove(ctx context.Context, req *AccountRef) (*Empty, error) {
	err := s.withAccount(ctx, req.ID, func(a *account.Account) error {
		s.core.Accounts.Delete(a)
		return nil
	})
	if err != nil {
		return nil, toStatus("remove account", err)
	}
	return &Empty{}, nil
}

func (s *AccountService) SetEnabled(ctx context.Context, req *SetEnabledRequest) (*Account, error) {
	return s.update(ctx, "set enabled", req.ID, func(a *account.Account) error {
		a.SetEnabled(req.Enabled)
		return nil
	})
}

func (s *AccountService) Connect(ctx context.Context, req *AccountRef) (*Account, error) {
	return s.update(ctx, "connect", req.ID, func(a *account.Account) error {
		if !a.Enabled() {
			return fmt.Errorf("%s is disabled: %w", a.Username(), account.ErrPrecondition)
		}
		a.Connect()
		return nil
	})
}

func (s *AccountService) Disconnect(ctx context.Context, req *AccountRef) (*Account, error) {
	return s.update(ctx, "disconnect", req.ID, func(a *account.Account) error {
		return a.Disconnect()
	})
}

func (s *AccountService) SetSetting(ctx context.Context, req *SetSettingRequest) (*Account, error) {
	return s.update(ctx, "set setting", req.ID, func(a *account.Account) error {
		if req.Name == "" {
			return fmt.Errorf("setting name is required: %w", errInvalid)
		}
		typ := req.Type
		if typ == "" {
			typ = "string"
		}
		t, ok := account.ParseSettingType(typ)
		if !ok {
			return fmt.Errorf("setting type %q: %w", req.Type, errInvalid)
		}
		switch t {
		case account.SettingInt:
			n, err := strconv.Atoi(req.Value)
			if err != nil {
				return fmt.Errorf("setting %s: %w", req.Name, errInvalid)
			}
			a.SetInt(req.Name, n)
		case account.SettingBool:
			b, err := strconv.ParseBool(req.Value)
			if err != nil {
				return fmt.Errorf("setting %s: %w", req.Name, errInvalid)
			}
			a.SetBool(req.Name, b)
		default:
			a.SetString(req.Name, req.Value)
		}
		return nil
	})
}

func (s *AccountService) SetStatus(ctx context.Context, req *SetStatusRequest) (*Account, error) {
	return s.update(ctx, "set status", req.ID, func(a *account.Account) error {
		return a.SetStatus(req.StatusID, req.Message)
	})
}

func (s *AccountService) Log(_ context.Context, req *AccountLogRequest) (*AccountLogResponse, error) {
	entries, err := s.core.DB.AccountLog(req.ID, req.Limit)
	if err != nil {
		return nil, toStatus("account log", err)
	}
	resp := &AccountLogResponse{}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, LogEntry{Kind: e.Kind, Message: e.Message, LoggedAtMs: e.LoggedAt})
	}
	return resp, nil
}

// withAccount runs f on the loop with the account id.
func (s *AccountService) withAccount(ctx context.Context, id string, f func(*account.Account) error) error {
	var opErr error
	err := s.core.Do(ctx, func() {
		a := s.core.Accounts.FindByID(id)
		if a == nil {
			opErr = fmt.Errorf("%q: %w", id, errAccountNotFound)
			return
		}
		opErr = f(a)
	})
	if err != nil {
		return err
	}
	return opErr
}

func (s *AccountService) update(ctx context.Context, op, id string, f func(*account.Account) error) (*Account, error) {
	var out Account
	err := s.withAccount(ctx, id, func(a *account.Account) error {
		if err := f(a); err != nil {
			return err
		}
		out = accountToAPI(a)
		return nil
	})
	if err != nil {
		return nil, toStatus(op, err)
	}
	return &out, nil
}

func accountToAPI(a *account.Account) Account {
	out := Account{
		ID:         a.ID(),
		Username:   a.Username(),
		ProtocolID: a.ProtocolID(),
		Alias:      a.Alias(),
		Enabled:    a.Enabled(),
		State:      accountState(a),
		Presence:   a.Presence().Primitive().String(),
	}
	if e := a.Error(); e != nil {
		out.Error = e.Description
		out.ErrorKind = e.Kind.String()
	}
	if names := a.SettingNames(); len(names) > 0 {
		out.Settings = make(map[string]string, len(names))
		for _, name := range names {
			st, _ := a.Setting(name)
			switch st.Type {
			case account.SettingInt:
				out.Settings[name] = strconv.Itoa(st.Int)
			case account.SettingBool:
				out.Settings[name] = strconv.FormatBool(st.Bool)
			default:
				out.Settings[name] = st.Str
			}
		}
	}
	return out
}

func accountState(a *account.Account) string {
	switch {
	case a.IsConnected():
		return protocol.Connected.String()
	case a.IsConnecting():
		return protocol.Connecting.String()
	default:
		return protocol.Disconnected.String()
	}
}
