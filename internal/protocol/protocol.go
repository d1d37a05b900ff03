// Package protocol defines the capability interfaces a protocol backend
// implements and the registry the core looks protocols up in.
//
// Every protocol must implement Client. The other capabilities are
// optional and discovered with As when the protocol is registered.
package protocol

import (
	"context"
	"net"
	"time"

	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/presence"
	"go.uber.org/zap"
)

// Options are protocol-wide behaviour flags.
type Options uint

const (
	// OptNoPassword means accounts never need a password.
	OptNoPassword Options = 1 << iota
	// OptPasswordOptional defers to the account's require_password flag.
	OptPasswordOptional
	// OptChatTopic means chats have a settable topic.
	OptChatTopic
	// OptSlashCommandsNative means the server interprets /commands.
	OptSlashCommandsNative
)

// State is a connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Flags are per-connection capability hints set by the backend.
type Flags uint

const (
	FlagHTML Flags = 1 << iota
	FlagNoBGColor
	FlagAutoResp
	FlagNoFontSize
	FlagNoURLDesc
	FlagNoImages
	FlagSupportMoods
	FlagSupportMoodMessages
)

// TypingState is a typing notification state.
type TypingState int

const (
	NotTyping TypingState = iota
	Typing
	Paused
)

func (s TypingState) String() string {
	switch s {
	case Typing:
		return "typing"
	case Paused:
		return "paused"
	default:
		return "none"
	}
}

// DefaultKeepaliveInterval is used when a Keepaliver reports no interval.
const DefaultKeepaliveInterval = 30 * time.Second

// Account is the view of an account a backend needs before a connection
// exists.
type Account interface {
	ID() string
	Username() string
	ProtocolID() string
	String(name, def string) string
	Int(name string, def int) int
	Bool(name string, def bool) bool
}

// Connection is the view of a live connection given to backends. All
// methods except Post, Context, Dial and Logger must be called on the
// event loop; backends running their own goroutines hop back with Post.
type Connection interface {
	ID() string
	Account() Account
	Password() string
	State() State
	SetState(State)
	Flags() Flags
	SetFlags(Flags)
	DisplayName() string
	SetDisplayName(string)
	Error(kind connerr.Kind, description string)
	ErrorFromGo(err error)
	UpdateLastReceived()
	AddActiveChat(id string)
	RemoveActiveChat(id string)
	// Inbound activity reported by the backend.
	ReceiveIM(msg IncomingIM)
	ReceiveTyping(from string, state TypingState)
	RosterBuddy(name, alias, group string)
	BuddyStatus(name string, online bool)

	// ProtocolData is a slot for backend state tied to this connection.
	ProtocolData() any
	SetProtocolData(any)

	Post(func())
	Context() context.Context
	Dial(ctx context.Context, network, addr string) (net.Conn, error)
	Logger() *zap.Logger
}

// IncomingIM is a direct message received from the server.
type IncomingIM struct {
	// ID is the server message id. Empty means the core assigns one.
	ID   string
	From string
	Body string
	At   time.Time
}

// StatusType describes a status a protocol supports.
type StatusType struct {
	ID           string
	Name         string
	Primitive    presence.Primitive
	Saveable     bool
	UserSettable bool
	Independent  bool
}

// Protocol identifies a backend.
type Protocol interface {
	ID() string
	Name() string
	Options() Options
}

// Client is the required capability: connection lifecycle.
type Client interface {
	// CanConnect reports whether the account may connect now. It may
	// block and is run off the event loop.
	CanConnect(ctx context.Context, account Account) error
	// Login starts connecting. Progress is reported through conn.
	Login(conn Connection) error
	// Close tears down backend state for conn.
	Close(conn Connection) error
	StatusTypes(account Account) []StatusType
}

// Normalizer canonicalizes user names for comparison.
type Normalizer interface {
	Normalize(account Account, name string) string
}

// Keepaliver sends periodic no-op traffic.
type Keepaliver interface {
	KeepaliveInterval() time.Duration
	Keepalive(conn Connection)
}

// StatusSetter pushes the account's status to the server.
type StatusSetter interface {
	SetStatus(conn Connection, status StatusType, message string) error
}

// Privacy pushes permit/deny lists after sign-on.
type Privacy interface {
	SetPermitDeny(conn Connection)
}

// IM sends direct messages.
type IM interface {
	SendIM(ctx context.Context, conn Connection, to, body string) error
}

// Typer sends typing notifications. It returns how long the remote side
// keeps the Typing state alive, zero when unknown.
type Typer interface {
	SendTyping(conn Connection, to string, state TypingState) time.Duration
}

// Chat joins and leaves multi-user chats.
type Chat interface {
	JoinChat(conn Connection, name string) error
	LeaveChat(conn Connection, id string)
}

// As returns p's implementation of capability T.
func As[T any](p Protocol) (T, bool) {
	c, ok := p.(T)
	return c, ok
}

// Normalize applies the protocol's Normalizer, or returns name unchanged.
func Normalize(p Protocol, account Account, name string) string {
	if n, ok := As[Normalizer](p); ok {
		return n.Normalize(account, name)
	}
	return name
}

// KeepaliveInterval returns the interval for p, or zero when p does not
// send keepalives.
func KeepaliveInterval(p Protocol) time.Duration {
	k, ok := As[Keepaliver](p)
	if !ok {
		return 0
	}
	if d := k.KeepaliveInterval(); d > 0 {
		return d
	}
	return DefaultKeepaliveInterval
}
