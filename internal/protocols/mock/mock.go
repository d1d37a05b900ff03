// Package mock provides prpl-mock, an in-process protocol backend. It
// never touches the network and records every call so tests and demo
// profiles can drive the core deterministically.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/imcore/internal/presence"
	"github.com/matheus3301/imcore/internal/protocol"
)

// ID is the protocol id of the mock backend.
const ID = "prpl-mock"

// Option configures a Protocol.
type Option func(*Protocol)

// WithOptions sets the protocol options. The default is
// OptPasswordOptional.
func WithOptions(o protocol.Options) Option {
	return func(p *Protocol) { p.options = o }
}

// WithManualConnect leaves new connections in Connecting until Complete
// is called.
func WithManualConnect() Option {
	return func(p *Protocol) { p.manual = true }
}

// WithKeepalive sets the keepalive interval.
func WithKeepalive(d time.Duration) Option {
	return func(p *Protocol) { p.keepalive = d }
}

// TypingCall records one SendTyping.
type TypingCall struct {
	To    string
	State protocol.TypingState
}

// IMCall records one SendIM.
type IMCall struct {
	Account string
	To      string
	Body    string
}

// Protocol is the prpl-mock backend.
type Protocol struct {
	options   protocol.Options
	manual    bool
	keepalive time.Duration

	mu            sync.Mutex
	canConnectErr error
	loginErr      error
	sendErr       error
	conns         map[string]protocol.Connection
	passwords     []string
	logins        int
	closes        int
	keepalives    int
	permitDeny    int
	statuses      []string
	typing        []TypingCall
	sent          []IMCall
	joined        []string
	left          []string
}

// New creates a mock protocol.
func New(opts ...Option) *Protocol {
	p := &Protocol{
		options:   protocol.OptPasswordOptional,
		keepalive: 30 * time.Second,
		conns:     make(map[string]protocol.Connection),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Protocol) ID() string                { return ID }
func (p *Protocol) Name() string              { return "Mock" }
func (p *Protocol) Options() protocol.Options { return p.options }

// FailCanConnect makes CanConnect return err. nil clears it.
func (p *Protocol) FailCanConnect(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canConnectErr = err
}

// FailLogin makes Login return err. nil clears it.
func (p *Protocol) FailLogin(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginErr = err
}

// FailSend makes SendIM return err. nil clears it.
func (p *Protocol) FailSend(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = err
}

func (p *Protocol) CanConnect(ctx context.Context, _ protocol.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canConnectErr
}

func (p *Protocol) Login(conn protocol.Connection) error {
	p.mu.Lock()
	p.logins++
	p.passwords = append(p.passwords, conn.Password())
	err := p.loginErr
	if err == nil {
		p.conns[conn.ID()] = conn
	}
	p.mu.Unlock()
	if err != nil {
		return err
	}

	conn.SetDisplayName(conn.Account().Username())
	if !p.manual {
		conn.Post(func() { conn.SetState(protocol.Connected) })
	}
	return nil
}

// Complete finishes a manual connect.
func (p *Protocol) Complete(connID string) bool {
	conn, ok := p.Conn(connID)
	if !ok {
		return false
	}
	conn.SetState(protocol.Connected)
	return true
}

// Conn returns the live connection with id.
func (p *Protocol) Conn(id string) (protocol.Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[id]
	return c, ok
}

// ConnFor returns the live connection of the account with username.
func (p *Protocol) ConnFor(username string) (protocol.Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		if c.Account().Username() == username {
			return c, true
		}
	}
	return nil, false
}

func (p *Protocol) Close(conn protocol.Connection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	delete(p.conns, conn.ID())
	return nil
}

func (p *Protocol) StatusTypes(protocol.Account) []protocol.StatusType {
	return []protocol.StatusType{
		{ID: "available", Name: "Available", Primitive: presence.Available, Saveable: true, UserSettable: true},
		{ID: "away", Name: "Away", Primitive: presence.Away, Saveable: true, UserSettable: true},
		{ID: "dnd", Name: "Do not disturb", Primitive: presence.DoNotDisturb, Saveable: true, UserSettable: true},
		{ID: "invisible", Name: "Invisible", Primitive: presence.Invisible, Saveable: true, UserSettable: true},
		{ID: "offline", Name: "Offline", Primitive: presence.Offline, Saveable: true, UserSettable: true},
	}
}

func (p *Protocol) Normalize(_ protocol.Account, name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (p *Protocol) KeepaliveInterval() time.Duration { return p.keepalive }

func (p *Protocol) Keepalive(protocol.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keepalives++
}

func (p *Protocol) SetStatus(_ protocol.Connection, status protocol.StatusType, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status.ID+":"+message)
	return nil
}

func (p *Protocol) SetPermitDeny(protocol.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permitDeny++
}

func (p *Protocol) SendIM(ctx context.Context, conn protocol.Connection, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, IMCall{Account: conn.Account().ID(), To: to, Body: body})
	return nil
}

func (p *Protocol) SendTyping(_ protocol.Connection, to string, state protocol.TypingState) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typing = append(p.typing, TypingCall{To: to, State: state})
	return 0
}

func (p *Protocol) JoinChat(conn protocol.Connection, name string) error {
	p.mu.Lock()
	p.joined = append(p.joined, name)
	p.mu.Unlock()
	conn.AddActiveChat(name)
	return nil
}

func (p *Protocol) LeaveChat(_ protocol.Connection, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left = append(p.left, id)
}

// Stats is a snapshot of recorded calls.
type Stats struct {
	Logins     int
	Closes     int
	Keepalives int
	PermitDeny int
	Passwords  []string
	Statuses   []string
	Typing     []TypingCall
	Sent       []IMCall
	Joined     []string
	Left       []string
}

// Stats returns a copy of the recorded calls.
func (p *Protocol) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Logins:     p.logins,
		Closes:     p.closes,
		Keepalives: p.keepalives,
		PermitDeny: p.permitDeny,
		Passwords:  append([]string(nil), p.passwords...),
		Statuses:   append([]string(nil), p.statuses...),
		Typing:     append([]TypingCall(nil), p.typing...),
		Sent:       append([]IMCall(nil), p.sent...),
		Joined:     append([]string(nil), p.joined...),
		Left:       append([]string(nil), p.left...),
	}
}

// Deliver simulates an incoming IM on username's connection. It must run
// on the loop.
func (p *Protocol) Deliver(username, from, body string, at time.Time) bool {
	conn, ok := p.ConnFor(username)
	if !ok {
		return false
	}
	conn.UpdateLastReceived()
	conn.ReceiveIM(protocol.IncomingIM{From: from, Body: body, At: at})
	return true
}

// Roster simulates the server pushing a buddy and its status.
func (p *Protocol) Roster(username, name, alias, group string, online bool) bool {
	conn, ok := p.ConnFor(username)
	if !ok {
		return false
	}
	conn.RosterBuddy(name, alias, group)
	conn.BuddyStatus(name, online)
	return true
}
