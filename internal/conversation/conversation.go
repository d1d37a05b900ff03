// Package conversation tracks the message exchanges of accounts: direct
// messages, group DMs, channels and threads.
//
// A Conversation belongs to one account and, while registered with a
// Manager, mirrors that account's connection state in Online. Like the
// rest of the core it is confined to the event loop.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/signal"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrOffline      = errors.New("account is offline")
	ErrUnsupported  = errors.New("protocol cannot send messages")
)

// Type is the kind of conversation.
type Type int

const (
	TypeUnset Type = iota
	TypeDM
	TypeGroupDM
	TypeChannel
	TypeThread
)

func (t Type) String() string {
	switch t {
	case TypeDM:
		return "dm"
	case TypeGroupDM:
		return "group-dm"
	case TypeChannel:
		return "channel"
	case TypeThread:
		return "thread"
	default:
		return "unset"
	}
}

// Property names reported by Changed.
const (
	PropTitle       = "title"
	PropTopic       = "topic"
	PropAlias       = "alias"
	PropOnline      = "online"
	PropFederated   = "federated"
	PropTypingState = "typing-state"
)

// MessageFlags describe a message's direction and nature.
type MessageFlags uint

const (
	FlagSend MessageFlags = 1 << iota
	FlagRecv
	FlagSystem
	FlagError
	// FlagDelayed marks an outgoing message held in the outbox.
	FlagDelayed
)

// Message is one entry of a conversation's history.
type Message struct {
	ID        string
	Author    string
	Contents  string
	Timestamp time.Time
	Flags     MessageFlags
}

// Outgoing reports whether the local user sent m.
func (m *Message) Outgoing() bool { return m.Flags&FlagSend != 0 }

// Options describe a new conversation.
type Options struct {
	// ID defaults to Name.
	ID   string
	Type Type
	// Name is the remote party of a DM or the channel name, used as the
	// target when sending.
	Name      string
	Title     string
	Federated bool
}

// Conversation is a message exchange context.
type Conversation struct {
	loop    *eventloop.Loop
	bus     *bus.Bus
	logger  *zap.Logger
	account *account.Account
	manager *Manager

	id        string
	typ       Type
	name      string
	title     string
	alias     string
	topic     string
	topicBy   string
	topicAt   time.Time
	online    bool
	federated bool

	typing      protocol.TypingState
	typingTimer *eventloop.Timer
	typeAgain   time.Time

	members  *Members
	messages []*Message

	Changed      signal.Signal[string]
	MessageAdded signal.Signal[*Message]
}

// New creates a conversation for a. It starts online when a is connected.
func New(env *account.Env, a *account.Account, opts Options) *Conversation {
	id := opts.ID
	if id == "" {
		id = opts.Name
	}
	c := &Conversation{
		loop:      env.Loop,
		bus:       env.Bus,
		logger:    env.Logger.Named("conversation").With(zap.String("conversation", id)),
		account:   a,
		id:        id,
		typ:       opts.Type,
		name:      opts.Name,
		title:     opts.Title,
		federated: opts.Federated,
		online:    a.IsConnected(),
	}
	c.members = newMembers(c)
	return c
}

func (c *Conversation) ID() string                        { return c.id }
func (c *Conversation) Type() Type                        { return c.typ }
func (c *Conversation) Name() string                      { return c.name }
func (c *Conversation) Account() *account.Account         { return c.account }
func (c *Conversation) Online() bool                      { return c.online }
func (c *Conversation) Federated() bool                   { return c.federated }
func (c *Conversation) Alias() string                     { return c.alias }
func (c *Conversation) Topic() string                     { return c.topic }
func (c *Conversation) TopicAuthor() string               { return c.topicBy }
func (c *Conversation) TopicUpdated() time.Time           { return c.topicAt }
func (c *Conversation) Members() *Members                 { return c.members }
func (c *Conversation) TypingState() protocol.TypingState { return c.typing }

// IsDM reports whether c is a one to one conversation.
func (c *Conversation) IsDM() bool { return c.typ == TypeDM }

// Title is the explicit title, else the alias, else the name.
func (c *Conversation) Title() string {
	switch {
	case c.title != "":
		return c.title
	case c.alias != "":
		return c.alias
	default:
		return c.name
	}
}

func (c *Conversation) SetTitle(title string) { c.setString(&c.title, title, PropTitle) }
func (c *Conversation) SetAlias(alias string) { c.setString(&c.alias, alias, PropAlias) }

// SetTopic records topic along with who set it and when.
func (c *Conversation) SetTopic(topic, author string) {
	c.topicBy = author
	c.topicAt = c.loop.Now()
	c.setString(&c.topic, topic, PropTopic)
}

func (c *Conversation) setString(field *string, v, prop string) {
	if *field == v {
		return
	}
	*field = v
	c.notify(prop)
}

// SetOnline marks the conversation reachable or not.
func (c *Conversation) SetOnline(online bool) {
	if c.online == online {
		return
	}
	c.online = online
	c.notify(PropOnline)
}

// SetFederated marks a conversation whose online state is managed by the
// protocol rather than the account's connection.
func (c *Conversation) SetFederated(federated bool) {
	if c.federated == federated {
		return
	}
	c.federated = federated
	c.notify(PropFederated)
}

// accountConnection follows the owning account. Federated conversations
// only ever go offline with the account.
func (c *Conversation) accountConnection(connected bool) {
	if c.federated {
		if !connected {
			c.SetOnline(false)
		}
		return
	}
	c.SetOnline(connected)
}

func (c *Conversation) notify(prop string) {
	c.Changed.Emit(prop)
	c.publish(bus.ConversationChanged, bus.ConversationPayload{
		AccountID:      c.account.ID(),
		ConversationID: c.id,
		Type:           c.typ.String(),
		Property:       prop,
	})
}

func (c *Conversation) publish(kind string, payload any) {
	if c.bus != nil {
		c.bus.Emit(kind, payload)
	}
}

// Messages returns the history ordered by timestamp.
func (c *Conversation) Messages() []*Message {
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// AddMessage inserts m after every message with an equal or earlier
// timestamp. Missing ids and timestamps are filled in.
func (c *Conversation) AddMessage(m *Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = c.loop.Now()
	}
	if m.ID == "" {
		m.ID = newMessageID(m.Timestamp)
	}
	i := sort.Search(len(c.messages), func(i int) bool {
		return c.messages[i].Timestamp.After(m.Timestamp)
	})
	c.messages = append(c.messages, nil)
	copy(c.messages[i+1:], c.messages[i:])
	c.messages[i] = m

	c.MessageAdded.Emit(m)
	c.publish(bus.ConversationMessage, bus.MessagePayload{
		MsgID:          m.ID,
		AccountID:      c.account.ID(),
		ConversationID: c.id,
		Author:         m.Author,
		Body:           m.Contents,
		Outgoing:       m.Outgoing(),
		Flags:          int(m.Flags),
		Timestamp:      m.Timestamp,
	})
}

// WriteSystem adds a local notice to the history.
func (c *Conversation) WriteSystem(text string, flags MessageFlags) *Message {
	m := &Message{Contents: text, Flags: flags | FlagSystem}
	c.AddMessage(m)
	return m
}

func newMessageID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// connection returns the account's connection when it is connected.
func (c *Conversation) connection() (*account.Connection, protocol.Protocol, bool) {
	conn := c.account.Connection()
	if conn == nil || conn.State() != protocol.Connected {
		return nil, nil, false
	}
	return conn, conn.Protocol(), true
}

// SendMessage adds an outgoing message and sends it through the account's
// connection. When the account is offline the message goes to the
// manager's outbox, if there is one. Sending resets the local typing
// state without notifying the remote side.
func (c *Conversation) SendMessage(body string) (*Message, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}
	author := c.account.Alias()
	if author == "" {
		author = c.account.Username()
	}
	m := &Message{Author: author, Contents: body, Flags: FlagSend}

	conn, p, ok := c.connection()
	if !ok {
		q := c.queue()
		if q == nil {
			return nil, fmt.Errorf("send to %s: %w", c.name, ErrOffline)
		}
		m.Flags |= FlagDelayed
		c.clearTyping()
		c.AddMessage(m)
		q.Enqueue(c.account.ID(), c.name, body, m.ID)
		return m, nil
	}
	im, ok := protocol.As[protocol.IM](p)
	if !ok {
		return nil, fmt.Errorf("send to %s: %w", c.name, ErrUnsupported)
	}

	c.clearTyping()
	c.AddMessage(m)
	to := c.name
	eventloop.Await(c.loop, conn.Context(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, im.SendIM(ctx, conn, to, body)
	}, func(_ struct{}, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn("failed to send message", zap.String("msg_id", m.ID), zap.Error(err))
		c.WriteSystem(fmt.Sprintf("Unable to send message: %v", err), FlagError)
	})
	return m, nil
}

func (c *Conversation) queue() Queue {
	if c.manager == nil {
		return nil
	}
	return c.manager.queue
}
