package conversation

import (
	"slices"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/signal"
	"go.uber.org/zap"
)

// Queue holds outgoing messages of offline accounts until they sign on.
type Queue interface {
	Enqueue(accountID, recipient, body, msgID string)
}

type key struct {
	account string
	id      string
}

// Manager indexes conversations by account and id and keeps them in step
// with their accounts.
type Manager struct {
	accounts *account.Manager
	env      *account.Env
	logger   *zap.Logger
	queue    Queue

	convs map[key]*Conversation
	order []*Conversation
	stop  []func()

	Registered   signal.Signal[*Conversation]
	Unregistered signal.Signal[*Conversation]
}

// Option configures a Manager.
type Option func(*Manager)

// WithQueue routes messages sent while offline to q.
func WithQueue(q Queue) Option {
	return func(m *Manager) { m.queue = q }
}

// NewManager creates a manager following accounts and the inbound traffic
// of their connections.
func NewManager(accounts *account.Manager, opts ...Option) *Manager {
	env := accounts.Env()
	m := &Manager{
		accounts: accounts,
		env:      env,
		logger:   env.Logger.Named("conversations"),
		convs:    make(map[key]*Conversation),
	}
	for _, opt := range opts {
		opt(m)
	}

	connected := accounts.AccountConnected.Connect(func(a *account.Account) { m.accountConnection(a, true) })
	disconnected := accounts.AccountDisconnected.Connect(func(a *account.Account) { m.accountConnection(a, false) })
	removed := accounts.Removed.Connect(m.accountRemoved)
	im := env.Connections.IM.Connect(m.receiveIM)
	typing := env.Connections.Typing.Connect(m.receiveTyping)
	m.stop = append(m.stop, func() {
		accounts.AccountConnected.Disconnect(connected)
		accounts.AccountDisconnected.Disconnect(disconnected)
		accounts.Removed.Disconnect(removed)
		env.Connections.IM.Disconnect(im)
		env.Connections.Typing.Disconnect(typing)
	})
	return m
}

// Close stops following the account manager.
func (m *Manager) Close() {
	for _, f := range m.stop {
		f()
	}
	m.stop = nil
}

// Register adds c. It reports false when a conversation with the same
// account and id is already registered.
func (m *Manager) Register(c *Conversation) bool {
	k := key{c.account.ID(), c.id}
	if _, ok := m.convs[k]; ok {
		return false
	}
	m.convs[k] = c
	m.order = append(m.order, c)
	c.manager = m
	c.accountConnection(c.account.IsConnected())

	m.logger.Debug("conversation registered",
		zap.String("account", c.account.Username()),
		zap.String("conversation", c.id),
		zap.Stringer("type", c.typ))
	m.Registered.Emit(c)
	m.publish(bus.ConversationAdded, c)
	return true
}

// Unregister removes c, stopping its typing timers.
func (m *Manager) Unregister(c *Conversation) bool {
	k := key{c.account.ID(), c.id}
	if m.convs[k] != c {
		return false
	}
	delete(m.convs, k)
	m.order = slices.DeleteFunc(m.order, func(o *Conversation) bool { return o == c })
	c.manager = nil
	c.typingTimer.Stop()
	for _, mem := range c.members.list {
		mem.timer.Stop()
	}
	m.Unregistered.Emit(c)
	m.publish(bus.ConversationRemoved, c)
	return true
}

func (m *Manager) publish(kind string, c *Conversation) {
	if m.env.Bus == nil {
		return
	}
	m.env.Bus.Emit(kind, bus.ConversationPayload{
		AccountID:      c.account.ID(),
		ConversationID: c.id,
		Type:           c.typ.String(),
	})
}

// Find returns the conversation of the account with id.
func (m *Manager) Find(accountID, id string) *Conversation {
	return m.convs[key{accountID, id}]
}

// All returns every conversation in registration order.
func (m *Manager) All() []*Conversation { return slices.Clone(m.order) }

func (m *Manager) Len() int { return len(m.order) }

// ForAccount returns the conversations of one account.
func (m *Manager) ForAccount(accountID string) []*Conversation {
	var out []*Conversation
	for _, c := range m.order {
		if c.account.ID() == accountID {
			out = append(out, c)
		}
	}
	return out
}

// imID is the id of the DM with name: the protocol's normalized form.
func imID(a *account.Account, name string) string {
	if p, ok := a.Protocol(); ok {
		return protocol.Normalize(p, a, name)
	}
	return name
}

// FindIM returns the DM of a with name.
func (m *Manager) FindIM(a *account.Account, name string) *Conversation {
	c := m.Find(a.ID(), imID(a, name))
	if c == nil || !c.IsDM() {
		return nil
	}
	return c
}

// FindOrCreateIM returns the DM of a with name, registering a new one when
// there is none.
func (m *Manager) FindOrCreateIM(a *account.Account, name string) *Conversation {
	if c := m.FindIM(a, name); c != nil {
		return c
	}
	c := New(m.env, a, Options{ID: imID(a, name), Type: TypeDM, Name: name})
	c.members.Add(name, "")
	m.Register(c)
	return c
}

func (m *Manager) accountConnection(a *account.Account, connected bool) {
	for _, c := range m.ForAccount(a.ID()) {
		c.accountConnection(connected)
	}
}

func (m *Manager) accountRemoved(a *account.Account) {
	for _, c := range m.ForAccount(a.ID()) {
		m.Unregister(c)
	}
}

func (m *Manager) receiveIM(ev account.IMEvent) {
	a := ev.Connection.Owner()
	c := m.FindOrCreateIM(a, ev.Message.From)
	if mem := c.members.Find(ev.Message.From); mem != nil {
		c.members.SetTyping(mem, protocol.NotTyping, 0)
	}
	c.AddMessage(&Message{
		ID:        ev.Message.ID,
		Author:    ev.Message.From,
		Contents:  ev.Message.Body,
		Timestamp: ev.Message.At,
		Flags:     FlagRecv,
	})
}

func (m *Manager) receiveTyping(ev account.TypingEvent) {
	c := m.FindIM(ev.Connection.Owner(), ev.From)
	if c == nil {
		return
	}
	mem, _ := c.members.Add(ev.From, "")
	c.members.SetTyping(mem, ev.State, remoteTypingTimeout(ev.State))
}
