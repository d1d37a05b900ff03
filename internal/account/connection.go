package account

import (
	"context"
	"fmt"
	"net"
	"slices"

	"github.com/google/uuid"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/signal"
	"go.uber.org/zap"
)

// Connection is the live session of one account. It is created Connecting
// and ends Disconnected; it is never reused.
type Connection struct {
	env     *Env
	account *Account
	proto   protocol.Protocol
	client  protocol.Client
	logger  *zap.Logger

	id          string
	password    string
	state       protocol.State
	flags       protocol.Flags
	displayName string
	data        any

	errInfo    *connerr.Info
	wantsToDie bool
	finalizing bool
	// pastConnecting is set once the connection reached Connected.
	pastConnecting bool

	activeChats []string

	keepalive      *eventloop.Timer
	disconnectTask *eventloop.Timer

	ctx    context.Context
	cancel context.CancelFunc

	// Changed reports property changes. It is silent while the
	// connection is being torn down.
	Changed signal.Signal[string]
}

func newConnection(env *Env, a *Account, p protocol.Protocol, password string) *Connection {
	client, _ := protocol.As[protocol.Client](p)
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		env:      env,
		account:  a,
		proto:    p,
		client:   client,
		id:       uuid.NewString(),
		password: password,
		state:    protocol.Connecting,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.logger = env.Logger.Named("connection").With(
		zap.String("connection", c.id),
		zap.String("account", a.username))
	env.Connections.add(c)
	env.Connections.SigningOn.Emit(c)
	env.publish(bus.ConnectionSigningOn, c.payload())
	return c
}

func (c *Connection) ID() string                  { return c.id }
func (c *Connection) Account() protocol.Account   { return c.account }
func (c *Connection) Owner() *Account             { return c.account }
func (c *Connection) Protocol() protocol.Protocol { return c.proto }
func (c *Connection) Password() string            { return c.password }
func (c *Connection) State() protocol.State       { return c.state }
func (c *Connection) Flags() protocol.Flags       { return c.flags }
func (c *Connection) DisplayName() string         { return c.displayName }
func (c *Connection) ErrorInfo() *connerr.Info    { return c.errInfo }
func (c *Connection) WantsToDie() bool            { return c.wantsToDie }
func (c *Connection) ProtocolData() any           { return c.data }
func (c *Connection) SetProtocolData(v any)       { c.data = v }
func (c *Connection) Context() context.Context    { return c.ctx }
func (c *Connection) Logger() *zap.Logger         { return c.logger }
func (c *Connection) Post(f func())               { c.env.Loop.Post(f) }
func (c *Connection) ActiveChats() []string       { return slices.Clone(c.activeChats) }

// KeepaliveTimer returns the armed keepalive timer, or nil.
func (c *Connection) KeepaliveTimer() *eventloop.Timer { return c.keepalive }

// Dial connects through the account's proxy. The attempt is cancelled
// when the connection is torn down.
func (c *Connection) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return c.env.Connector.Dial(ctx, c.id, c.account.proxy, network, addr)
}

func (c *Connection) SetFlags(f protocol.Flags) {
	c.flags = f
	c.notify("flags")
}

func (c *Connection) SetDisplayName(name string) {
	if c.displayName == name {
		return
	}
	c.displayName = name
	c.notify("display-name")
}

func (c *Connection) notify(prop string) {
	if c.finalizing {
		return
	}
	c.Changed.Emit(prop)
}

// SetState moves the connection to s and runs the transition's side
// effects.
func (c *Connection) SetState(s protocol.State) {
	if c.state == s {
		return
	}
	c.state = s
	c.logger.Debug("connection state changed", zap.Stringer("state", s))

	switch s {
	case protocol.Connected:
		c.enterConnected()
	case protocol.Disconnected:
		c.enterDisconnected()
	}
	c.notify("state")
	c.account.connectionState(s)
}

func (c *Connection) enterConnected() {
	a := c.account
	conns := c.env.Connections

	a.presence.SetLoginTime(c.env.Loop.Now())
	c.env.logSystem(a.id, "signed-on", fmt.Sprintf("+++ %s signed on", a.username))
	c.pastConnecting = true

	if c.env.Buddies != nil {
		c.env.Buddies.AddAccount(a.id)
	}

	conns.SignedOn.Emit(c)
	c.env.publish(bus.ConnectionSignedOn, c.payload())
	conns.Autojoin.Emit(c)

	if priv, ok := protocol.As[protocol.Privacy](c.proto); ok {
		priv.SetPermitDeny(c)
	}
	c.startKeepalive()
	conns.markConnected(c)
}

func (c *Connection) enterDisconnected() {
	c.env.logSystem(c.account.id, "signed-off", fmt.Sprintf("+++ %s signed off", c.account.username))
}

// connect validates the password requirement and starts the protocol
// login.
func (c *Connection) connect() error {
	opts := c.proto.Options()
	if c.password == "" && opts&(protocol.OptNoPassword|protocol.OptPasswordOptional) == 0 {
		return connerr.New(connerr.InvalidSettings,
			fmt.Sprintf("Cannot connect to account %s without a password.", c.account.username))
	}
	c.logger.Info("connecting")
	return c.client.Login(c)
}

// Error records the first connection error and schedules the account's
// disconnect on the next loop iteration. Later calls are ignored.
func (c *Connection) Error(kind connerr.Kind, description string) {
	kind, coerced := connerr.Coerce(kind)
	if coerced {
		c.logger.Error("connection error with invalid kind, using other-error")
	}
	if description == "" {
		c.logger.Error("connection error without description")
		description = "Unknown error"
	}
	if c.errInfo != nil {
		return
	}

	c.wantsToDie = connerr.IsFatal(kind)
	c.errInfo = connerr.NewInfo(kind, description)
	c.logger.Info("connection error",
		zap.Stringer("kind", kind),
		zap.String("description", description),
		zap.Bool("fatal", c.wantsToDie))

	c.env.Connections.Error.Emit(ErrorEvent{Connection: c, Info: c.errInfo})
	c.account.SetError(connerr.NewInfo(kind, description))
	ev := c.payload()
	ev.ErrorKind = kind.String()
	ev.Description = description
	c.env.publish(bus.ConnectionError, ev)

	c.disconnectTask = c.env.Loop.Once(0, c.deferredDisconnect)
}

// ErrorFromGo classifies err and reports it through Error. Cancellations
// are ignored.
func (c *Connection) ErrorFromGo(err error) {
	info, ok := connerr.Describe(err)
	if !ok {
		return
	}
	c.Error(info.Kind, info.Description)
}

func (c *Connection) deferredDisconnect() {
	c.disconnectTask = nil
	a := c.account
	cur := a.conn
	if cur != c {
		return
	}
	if cur.state != protocol.Disconnected {
		if err := a.Disconnect(); err != nil {
			c.logger.Warn("deferred disconnect failed", zap.Error(err))
		}
		return
	}
	if err := cur.disconnect(); err != nil {
		c.logger.Warn("failed to finish disconnect", zap.Error(err))
	}
	a.setConnection(nil)
}

// UpdateLastReceived pushes the keepalive deadline out by one interval.
func (c *Connection) UpdateLastReceived() {
	if c.keepalive == nil || !c.keepalive.Active() {
		return
	}
	c.keepalive.Reset(protocol.KeepaliveInterval(c.proto))
}

func (c *Connection) startKeepalive() {
	interval := protocol.KeepaliveInterval(c.proto)
	if interval <= 0 || c.keepalive != nil {
		return
	}
	k, _ := protocol.As[protocol.Keepaliver](c.proto)
	c.keepalive = c.env.Loop.Every(interval, func() {
		if c.state == protocol.Connected {
			k.Keepalive(c)
		}
	})
}

func (c *Connection) stopKeepalive() {
	c.keepalive.Stop()
	c.keepalive = nil
}

func (c *Connection) AddActiveChat(id string) {
	if !slices.Contains(c.activeChats, id) {
		c.activeChats = append(c.activeChats, id)
	}
}

func (c *Connection) RemoveActiveChat(id string) {
	if i := slices.Index(c.activeChats, id); i >= 0 {
		c.activeChats = slices.Delete(c.activeChats, i, i+1)
	}
}

func (c *Connection) ReceiveIM(msg protocol.IncomingIM) {
	if msg.At.IsZero() {
		msg.At = c.env.Loop.Now()
	}
	c.env.Connections.IM.Emit(IMEvent{Connection: c, Message: msg})
}

func (c *Connection) ReceiveTyping(from string, state protocol.TypingState) {
	c.env.Connections.Typing.Emit(TypingEvent{Connection: c, From: from, State: state})
}

func (c *Connection) RosterBuddy(name, alias, group string) {
	c.env.Connections.Roster.Emit(RosterEvent{Connection: c, Name: name, Alias: alias, Group: group})
}

func (c *Connection) BuddyStatus(name string, online bool) {
	c.env.Connections.BuddyStatus.Emit(BuddyStatusEvent{Connection: c, Name: name, Online: online})
}

// disconnect tears the connection down. It is idempotent.
func (c *Connection) disconnect() error {
	if c.finalizing {
		return nil
	}
	c.finalizing = true
	conns := c.env.Connections
	a := c.account
	c.logger.Info("disconnecting connection")

	conns.SigningOff.Emit(c)
	c.env.publish(bus.ConnectionSigningOff, c.payload())

	if chat, ok := protocol.As[protocol.Chat](c.proto); ok {
		for _, id := range slices.Clone(c.activeChats) {
			chat.LeaveChat(c, id)
		}
	}
	c.activeChats = nil
	c.stopKeepalive()

	err := c.client.Close(c)

	if c.env.Buddies != nil {
		c.env.Buddies.ClearProtocolData(a.id)
	}
	c.env.Connector.CancelHandle(c.id)
	c.cancel()
	c.disconnectTask.Stop()
	c.disconnectTask = nil

	conns.remove(c)
	c.SetState(protocol.Disconnected)

	if c.pastConnecting && c.env.Buddies != nil {
		c.env.Buddies.RemoveAccount(a.id)
	}

	conns.SignedOff.Emit(c)
	c.env.publish(bus.ConnectionSignedOff, c.payload())

	c.env.Requests.CloseWithHandle(c.id)
	c.env.Requests.CloseWithHandle(a.id)

	conns.markDisconnected(c)
	return err
}

func (c *Connection) payload() bus.ConnectionPayload {
	return bus.ConnectionPayload{ConnectionID: c.id, AccountID: c.account.id}
}
