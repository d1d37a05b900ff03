// Package presence tracks the online, idle and status state of an account
// or buddy.
package presence

import (
	"time"

	"github.com/matheus3301/imcore/internal/signal"
)

// Primitive is the basic availability state.
type Primitive int

const (
	Offline Primitive = iota
	Available
	Idle
	Invisible
	Away
	DoNotDisturb
	Streaming
)

var primitiveNames = map[Primitive]string{
	Offline:      "offline",
	Available:    "available",
	Idle:         "idle",
	Invisible:    "invisible",
	Away:         "away",
	DoNotDisturb: "dnd",
	Streaming:    "streaming",
}

func (p Primitive) String() string {
	if s, ok := primitiveNames[p]; ok {
		return s
	}
	return "unknown"
}

// ParsePrimitive maps a name from String back to a Primitive.
func ParsePrimitive(s string) (Primitive, bool) {
	for p, name := range primitiveNames {
		if name == s {
			return p, true
		}
	}
	return Offline, false
}

// Field names reported in Change.
const (
	FieldPrimitive             = "primitive"
	FieldIdle                  = "idle"
	FieldLoginTime             = "login-time"
	FieldMessage               = "message"
	FieldEmoji                 = "emoji"
	FieldMobile                = "mobile"
	FieldNotificationsDisabled = "notifications-disabled"
)

// Change describes a presence property update.
type Change struct {
	Presence *Presence
	Field    string
	// WasOnline and WasIdle capture the state before a primitive or idle
	// change so observers can adjust counters.
	WasOnline bool
	WasIdle   bool
}

// Presence is owned by exactly one account or buddy. It is not safe for
// concurrent use; callers keep it on the event loop.
type Presence struct {
	primitive             Primitive
	idle                  bool
	idleTime              time.Time
	loginTime             time.Time
	message               string
	emoji                 string
	mobile                bool
	notificationsDisabled bool

	Changed signal.Signal[Change]
}

// New returns an offline presence.
func New() *Presence {
	return &Presence{}
}

func (p *Presence) Primitive() Primitive { return p.primitive }

// SetPrimitive updates the primitive, notifying only on change.
func (p *Presence) SetPrimitive(prim Primitive) {
	if p.primitive == prim {
		return
	}
	wasOnline, wasIdle := p.IsOnline(), p.IsIdle()
	p.primitive = prim
	p.Changed.Emit(Change{Presence: p, Field: FieldPrimitive, WasOnline: wasOnline, WasIdle: wasIdle})
}

// IsOnline reports whether the primitive is anything but Offline.
func (p *Presence) IsOnline() bool {
	return p != nil && p.primitive != Offline
}

// IsAvailable reports whether the primitive is Available.
func (p *Presence) IsAvailable() bool {
	return p != nil && p.primitive == Available
}

// IsIdle reports the idle flag. An offline presence is never idle.
func (p *Presence) IsIdle() bool {
	return p.IsOnline() && p.idle
}

// IdleTime returns when idleness started, zero when unknown or not idle.
func (p *Presence) IdleTime() time.Time { return p.idleTime }

// SetIdle updates idleness. since is kept only while idle.
func (p *Presence) SetIdle(idle bool, since time.Time) {
	if !idle {
		since = time.Time{}
	}
	if p.idle == idle && p.idleTime.Equal(since) {
		return
	}
	wasOnline, wasIdle := p.IsOnline(), p.IsIdle()
	p.idle = idle
	p.idleTime = since
	p.Changed.Emit(Change{Presence: p, Field: FieldIdle, WasOnline: wasOnline, WasIdle: wasIdle})
}

func (p *Presence) LoginTime() time.Time { return p.loginTime }

// SetLoginTime records when the owner signed on. Zero clears it.
func (p *Presence) SetLoginTime(t time.Time) {
	if p.loginTime.Equal(t) {
		return
	}
	p.loginTime = t
	p.Changed.Emit(Change{Presence: p, Field: FieldLoginTime})
}

func (p *Presence) Message() string { return p.message }

func (p *Presence) SetMessage(msg string) {
	if p.message == msg {
		return
	}
	p.message = msg
	p.Changed.Emit(Change{Presence: p, Field: FieldMessage})
}

func (p *Presence) Emoji() string { return p.emoji }

func (p *Presence) SetEmoji(emoji string) {
	if p.emoji == emoji {
		return
	}
	p.emoji = emoji
	p.Changed.Emit(Change{Presence: p, Field: FieldEmoji})
}

func (p *Presence) Mobile() bool { return p.mobile }

func (p *Presence) SetMobile(mobile bool) {
	if p.mobile == mobile {
		return
	}
	p.mobile = mobile
	p.Changed.Emit(Change{Presence: p, Field: FieldMobile})
}

func (p *Presence) NotificationsDisabled() bool { return p.notificationsDisabled }

func (p *Presence) SetNotificationsDisabled(disabled bool) {
	if p.notificationsDisabled == disabled {
		return
	}
	p.notificationsDisabled = disabled
	p.Changed.Emit(Change{Presence: p, Field: FieldNotificationsDisabled})
}

// Compare orders presences for display: online before offline, then
// presences without an idle time before idle ones, then shorter idle
// before longer idle. A nil presence sorts last.
func Compare(a, b *Presence, now time.Time) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	aOnline, bOnline := a.IsOnline(), b.IsOnline()
	if aOnline && !bOnline {
		return -1
	}
	if !aOnline && bOnline {
		return 1
	}

	aIdle, bIdle := !a.idleTime.IsZero(), !b.idleTime.IsZero()
	switch {
	case !aIdle && !bIdle:
		return 0
	case !aIdle:
		return -1
	case !bIdle:
		return 1
	}

	d1, d2 := now.Sub(a.idleTime), now.Sub(b.idleTime)
	switch {
	case d1 > d2:
		return 1
	case d1 < d2:
		return -1
	}
	return 0
}
