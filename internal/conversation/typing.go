package conversation

import (
	"time"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/protocol"
)

const (
	// TypingTimeout is how long Typing lasts without a keystroke before it
	// decays to Paused.
	TypingTimeout = 6 * time.Second
	// PausedTimeout is how long Paused lasts before it decays to none.
	PausedTimeout = 30 * time.Second
	// TypeAgainGate is the minimum gap between two Typing notifications
	// when the protocol does not report its own.
	TypeAgainGate = 3 * time.Second
)

// SetTypingState sets the local user's typing state and tells the remote
// side about it. A transition is sent once; repeated Typing calls are
// resent only after the type-again gate has passed. Typing and Paused
// decay on their own when not renewed.
func (c *Conversation) SetTypingState(state protocol.TypingState) {
	prev := c.typing
	c.typing = state

	switch state {
	case protocol.Typing:
		c.armTyping(TypingTimeout)
		if prev != protocol.Typing || !c.loop.Now().Before(c.typeAgain) {
			c.sendTyping(state)
		}
	case protocol.Paused:
		c.armTyping(PausedTimeout)
		if prev != protocol.Paused {
			c.sendTyping(state)
		}
	default:
		c.typingTimer.Stop()
		if prev != protocol.NotTyping {
			c.sendTyping(protocol.NotTyping)
		}
	}

	if prev != state {
		c.typingChanged("")
	}
}

func (c *Conversation) armTyping(d time.Duration) {
	if c.typingTimer == nil {
		c.typingTimer = c.loop.Once(d, c.typingExpired)
		return
	}
	c.typingTimer.Reset(d)
}

func (c *Conversation) typingExpired() {
	switch c.typing {
	case protocol.Typing:
		c.SetTypingState(protocol.Paused)
	case protocol.Paused:
		c.SetTypingState(protocol.NotTyping)
	}
}

// clearTyping drops the local typing state without a notification to the
// remote side.
func (c *Conversation) clearTyping() {
	c.typingTimer.Stop()
	c.typeAgain = time.Time{}
	if c.typing == protocol.NotTyping {
		return
	}
	c.typing = protocol.NotTyping
	c.typingChanged("")
}

func (c *Conversation) sendTyping(state protocol.TypingState) {
	conn, p, ok := c.connection()
	if !ok {
		return
	}
	typer, ok := protocol.As[protocol.Typer](p)
	if !ok {
		return
	}
	gate := typer.SendTyping(conn, c.name, state)
	if state != protocol.Typing {
		return
	}
	if gate <= 0 {
		gate = TypeAgainGate
	}
	c.typeAgain = c.loop.Now().Add(gate)
}

func (c *Conversation) typingChanged(member string) {
	state := c.typing
	if member == "" {
		c.Changed.Emit(PropTypingState)
	} else if m := c.members.Find(member); m != nil {
		state = m.typing
	}
	c.publish(bus.ConversationTyping, bus.TypingPayload{
		AccountID:      c.account.ID(),
		ConversationID: c.id,
		Member:         member,
		State:          state.String(),
	})
}
