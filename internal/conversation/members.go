package conversation

import (
	"slices"
	"time"

	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/signal"
)

// Member is a participant of a conversation.
type Member struct {
	Name  string
	Alias string

	typing protocol.TypingState
	timer  *eventloop.Timer
}

// TypingState is the member's last reported typing state.
func (m *Member) TypingState() protocol.TypingState { return m.typing }

// DisplayName is the alias when set.
func (m *Member) DisplayName() string {
	if m.Alias != "" {
		return m.Alias
	}
	return m.Name
}

// Members is the ordered participant list of a conversation.
type Members struct {
	conv *Conversation
	list []*Member

	Added         signal.Signal[*Member]
	Removed       signal.Signal[*Member]
	TypingChanged signal.Signal[*Member]
}

func newMembers(c *Conversation) *Members {
	return &Members{conv: c}
}

// Add appends a member named name. An existing member is returned as is
// and reported as not added.
func (ms *Members) Add(name, alias string) (*Member, bool) {
	if m := ms.Find(name); m != nil {
		return m, false
	}
	m := &Member{Name: name, Alias: alias}
	ms.list = append(ms.list, m)
	ms.Added.Emit(m)
	return m, true
}

// Remove drops the member named name.
func (ms *Members) Remove(name string) bool {
	i := slices.IndexFunc(ms.list, func(m *Member) bool { return m.Name == name })
	if i < 0 {
		return false
	}
	m := ms.list[i]
	m.timer.Stop()
	ms.list = slices.Delete(ms.list, i, i+1)
	ms.Removed.Emit(m)
	return true
}

// Find returns the member named name, or nil.
func (ms *Members) Find(name string) *Member {
	for _, m := range ms.list {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// All returns the members in join order.
func (ms *Members) All() []*Member { return slices.Clone(ms.list) }

func (ms *Members) Len() int { return len(ms.list) }

// SetTyping records a member's typing state. A positive timeout resets the
// state to none when it expires without another update.
func (ms *Members) SetTyping(m *Member, state protocol.TypingState, timeout time.Duration) {
	m.timer.Stop()
	m.timer = nil
	if state != m.typing {
		m.typing = state
		ms.TypingChanged.Emit(m)
		ms.conv.typingChanged(m.Name)
	}
	if timeout > 0 && state != protocol.NotTyping {
		m.timer = ms.conv.loop.Once(timeout, func() {
			m.timer = nil
			ms.SetTyping(m, protocol.NotTyping, 0)
		})
	}
}

// remoteTypingTimeout is how long a remote typing notification holds.
func remoteTypingTimeout(state protocol.TypingState) time.Duration {
	switch state {
	case protocol.Typing:
		return TypingTimeout
	case protocol.Paused:
		return PausedTimeout
	default:
		return 0
	}
}
