package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/credential"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/request"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Connect starts the connect sequence: can-connect check, password lookup
// or prompt, then a new Connection. It returns before any of that happens.
// Connect does nothing for a disabled account or one that is already
// connecting or connected.
func (a *Account) Connect() {
	a.SetError(nil)

	if !a.enabled {
		a.logger.Info("account not enabled, not connecting")
		return
	}
	if a.connecting || !a.IsDisconnected() {
		a.logger.Debug("connect already in progress")
		return
	}

	p, ok := a.Protocol()
	if !ok {
		a.env.Requests.Notify(a.id, a.id,
			fmt.Sprintf("Failed to load account '%s'", a.username),
			fmt.Sprintf("Failed to find a protocol with id '%s'", a.protocolID),
			"")
		return
	}
	client, _ := protocol.As[protocol.Client](p)

	ctx, cancel := context.WithCancel(context.Background())
	a.connecting = true
	a.connectCancel = cancel

	eventloop.Await(a.env.Loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, client.CanConnect(ctx, a)
	}, func(_ struct{}, err error) {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			a.endConnect()
			if errors.Is(err, context.Canceled) {
				return
			}
			msg := err.Error()
			if msg == "" {
				msg = "unknown error"
			}
			a.SetError(connerr.NewInfo(connerr.NetworkError, msg))
			return
		}
		a.resolvePassword(ctx, p)
	})
}

func (a *Account) passwordRequired(p protocol.Protocol) bool {
	opts := p.Options()
	switch {
	case opts&protocol.OptPasswordOptional != 0:
		return a.requirePassword
	case opts&protocol.OptNoPassword != 0:
		return false
	default:
		return true
	}
}

func (a *Account) resolvePassword(ctx context.Context, p protocol.Protocol) {
	if !a.passwordRequired(p) {
		a.env.Loop.Once(0, func() {
			if ctx.Err() == nil {
				a.realConnect(p, a.password)
			}
		})
		return
	}

	read := func(done func(string, error)) {
		if a.env.Credentials == nil {
			a.env.Loop.Post(func() { done("", credential.ErrNoProvider) })
			return
		}
		a.env.Credentials.ReadPassword(ctx, a.id, done)
	}
	read(func(pw string, err error) {
		if ctx.Err() != nil {
			return
		}
		if err != nil && !eris.Is(err, credential.ErrNotFound) {
			a.logger.Warn("failed to read password", zap.Error(err))
		}
		if pw == "" {
			pw = a.password
		}
		if pw == "" {
			a.requestPassword(ctx, p)
			return
		}
		a.realConnect(p, pw)
	})
}

func (a *Account) requestPassword(ctx context.Context, p protocol.Protocol) {
	a.env.Requests.CloseWithHandle(a.id)
	a.env.Requests.RequestPassword(a.id, a.id,
		"Enter Password",
		fmt.Sprintf("Enter password for %s (%s)", a.username, p.Name()),
		func(ans request.PasswordAnswer) {
			if ans.Password == "" {
				a.logger.Warn("password is required to sign on")
				a.endConnect()
				return
			}
			a.SetRememberPassword(ans.Remember)
			a.password = ans.Password
			if !ans.Remember || a.env.Credentials == nil {
				a.realConnect(p, ans.Password)
				return
			}
			a.env.Credentials.WritePassword(ctx, a.id, ans.Password, func(err error) {
				if err != nil {
					a.logger.Warn("failed to save password", zap.Error(err))
				}
				if ctx.Err() != nil {
					return
				}
				a.realConnect(p, ans.Password)
			})
		},
		func() {
			a.endConnect()
			a.SetEnabled(false)
		})
}

// realConnect creates the Connection and starts the protocol login.
func (a *Account) realConnect(p protocol.Protocol, password string) {
	a.endConnect()
	if !a.enabled || !a.IsDisconnected() {
		return
	}
	c := newConnection(a.env, a, p, password)
	a.setConnection(c)
	if err := c.connect(); err != nil {
		c.ErrorFromGo(err)
	}
}

func (a *Account) endConnect() {
	if a.connectCancel != nil {
		a.connectCancel()
	}
	a.connecting = false
	a.connectCancel = nil
}

// cancelPendingConnect abandons an unfinished connect sequence.
func (a *Account) cancelPendingConnect() {
	if !a.connecting {
		return
	}
	a.endConnect()
	a.env.Requests.CloseWithHandle(a.id)
}

// Disconnect tears down the live connection. It fails with
// ErrPrecondition when the account is already disconnected or
// disconnecting.
func (a *Account) Disconnect() error {
	if a.disconnecting || a.IsDisconnected() {
		return fmt.Errorf("disconnect %s: %w", a.username, ErrPrecondition)
	}
	a.logger.Info("disconnecting account")

	a.disconnecting = true
	if err := a.conn.disconnect(); err != nil {
		a.logger.Warn("error while disconnecting", zap.Error(err))
	}
	a.setConnection(nil)
	a.disconnecting = false
	return nil
}
