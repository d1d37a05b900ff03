package account

import (
	"slices"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/signal"
)

// ErrorEvent is emitted when a connection records its error.
type ErrorEvent struct {
	Connection *Connection
	Info       *connerr.Info
}

// IMEvent carries a received direct message.
type IMEvent struct {
	Connection *Connection
	Message    protocol.IncomingIM
}

// TypingEvent carries a remote typing notification.
type TypingEvent struct {
	Connection *Connection
	From       string
	State      protocol.TypingState
}

// RosterEvent reports a buddy from the server-side list.
type RosterEvent struct {
	Connection *Connection
	Name       string
	Alias      string
	Group      string
}

// BuddyStatusEvent reports a buddy going online or offline.
type BuddyStatusEvent struct {
	Connection *Connection
	Name       string
	Online     bool
}

// Connections tracks every live connection and announces the process-wide
// online and offline edges.
type Connections struct {
	bus       *bus.Bus
	all       []*Connection
	connected []*Connection

	SigningOn  signal.Signal[*Connection]
	SignedOn   signal.Signal[*Connection]
	SigningOff signal.Signal[*Connection]
	SignedOff  signal.Signal[*Connection]
	Error      signal.Signal[ErrorEvent]
	// Autojoin stops at the first handler that joined chats.
	Autojoin signal.Query[*Connection]

	IM          signal.Signal[IMEvent]
	Typing      signal.Signal[TypingEvent]
	Roster      signal.Signal[RosterEvent]
	BuddyStatus signal.Signal[BuddyStatusEvent]

	// Online fires when the first connection becomes connected, Offline
	// when the last connected one goes away.
	Online  signal.Signal[struct{}]
	Offline signal.Signal[struct{}]
}

// NewConnections creates an empty tracker. b may be nil.
func NewConnections(b *bus.Bus) *Connections {
	return &Connections{bus: b}
}

// All returns every live connection.
func (cs *Connections) All() []*Connection { return slices.Clone(cs.all) }

// Connected returns the connections that reached Connected and are not
// torn down yet.
func (cs *Connections) Connected() []*Connection { return slices.Clone(cs.connected) }

// Len reports the number of live connections.
func (cs *Connections) Len() int { return len(cs.all) }

// IsOnline reports whether any connection is connected.
func (cs *Connections) IsOnline() bool { return len(cs.connected) > 0 }

// DisconnectAll marks every connection as unwanted and disconnects its
// account. Used at shutdown.
func (cs *Connections) DisconnectAll() {
	for _, c := range cs.All() {
		if c.finalizing {
			continue
		}
		c.wantsToDie = true
		if err := c.account.Disconnect(); err != nil {
			// The account already let go; finish the teardown here.
			_ = c.disconnect()
			if c.account.conn == c {
				c.account.setConnection(nil)
			}
		}
	}
}

func (cs *Connections) add(c *Connection) {
	cs.all = append(cs.all, c)
}

func (cs *Connections) remove(c *Connection) {
	if i := slices.Index(cs.all, c); i >= 0 {
		cs.all = slices.Delete(cs.all, i, i+1)
	}
}

func (cs *Connections) markConnected(c *Connection) {
	if slices.Contains(cs.connected, c) {
		return
	}
	first := len(cs.connected) == 0
	cs.connected = append(cs.connected, c)
	if first {
		cs.Online.Emit(struct{}{})
		if cs.bus != nil {
			cs.bus.Emit(bus.CoreOnline, nil)
		}
	}
}

func (cs *Connections) markDisconnected(c *Connection) {
	i := slices.Index(cs.connected, c)
	if i < 0 {
		return
	}
	cs.connected = slices.Delete(cs.connected, i, i+1)
	if len(cs.connected) == 0 {
		cs.Offline.Emit(struct{}{})
		if cs.bus != nil {
			cs.bus.Emit(bus.CoreOffline, nil)
		}
	}
}
