// Package account implements accounts, their live connections and the
// manager that owns them.
//
// Everything here is confined to the event loop in Env.Loop. Slow work
// (can-connect checks, credential I/O) runs through eventloop.Await and
// resumes on the loop.
package account

import (
	"errors"
	"time"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/credential"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/proxy"
	"github.com/matheus3301/imcore/internal/request"
	"go.uber.org/zap"
)

var (
	// ErrPrecondition is returned when an operation does not apply in the
	// account's current state.
	ErrPrecondition = errors.New("precondition failed")
	// ErrNotLoaded is returned by Save before the document was loaded.
	ErrNotLoaded = errors.New("accounts not loaded")
)

// BuddyList is the part of the buddy list that follows connections.
type BuddyList interface {
	// AddAccount makes the account's buddies visible.
	AddAccount(accountID string)
	// RemoveAccount hides the account's buddies.
	RemoveAccount(accountID string)
	// ClearProtocolData drops backend state attached to the account's
	// buddies.
	ClearProtocolData(accountID string)
}

// SystemLog records connection milestones per account.
type SystemLog interface {
	Append(accountID, kind, message string, at time.Time)
}

// Env holds the collaborators every account and connection shares.
type Env struct {
	Loop        *eventloop.Loop
	Logger      *zap.Logger
	Bus         *bus.Bus
	Protocols   *protocol.Registry
	Credentials *credential.Manager
	Requests    *request.Broker
	Connector   *proxy.Connector
	Connections *Connections

	// Buddies and SystemLog may be nil.
	Buddies   BuddyList
	SystemLog SystemLog
	// LogSystem enables the signed on / signed off system log lines.
	LogSystem bool
}

// NewEnv fills in defaults for the optional collaborators.
func NewEnv(loop *eventloop.Loop, logger *zap.Logger, b *bus.Bus, protocols *protocol.Registry, creds *credential.Manager, requests *request.Broker, connector *proxy.Connector) *Env {
	if logger == nil {
		logger = zap.NewNop()
	}
	if connector == nil {
		connector = proxy.NewConnector(proxy.NewResolver(nil))
	}
	if requests == nil {
		requests = request.NewBroker(b, logger.Named("request"), loop.Now)
	}
	return &Env{
		Loop:        loop,
		Logger:      logger,
		Bus:         b,
		Protocols:   protocols,
		Credentials: creds,
		Requests:    requests,
		Connector:   connector,
		Connections: NewConnections(b),
	}
}

func (e *Env) publish(kind string, payload any) {
	if e.Bus != nil {
		e.Bus.Emit(kind, payload)
	}
}

func (e *Env) logSystem(accountID, kind, message string) {
	if !e.LogSystem || e.SystemLog == nil {
		return
	}
	e.SystemLog.Append(accountID, kind, message, e.Loop.Now())
}
