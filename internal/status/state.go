// Package status tracks the daemon's lifecycle state.
package status

import (
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/rotisserie/eris"
)

// ErrInvalidTransition is returned by Transition for a move the state
// graph does not allow.
var ErrInvalidTransition = eris.New("invalid status transition")

// State represents a daemon runtime state.
type State string

const (
	Booting State = "BOOTING"
	// Loading reads the profile's accounts.xml and blist.xml.
	Loading State = "LOADING"
	// Offline means loaded with the account manager offline.
	Offline  State = "OFFLINE"
	Ready    State = "READY"
	Stopping State = "STOPPING"
	Error    State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:  {Loading, Error},
	Loading:  {Offline, Ready, Error},
	Offline:  {Ready, Stopping, Error},
	Ready:    {Offline, Stopping, Error},
	Stopping: {},
	Error:    {Booting, Stopping},
}

// Machine tracks and enforces daemon runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return eris.Wrapf(ErrInvalidTransition, "%s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Emit(bus.CoreStatusChanged, StatusChange{From: from, To: to})
	}
	return nil
}

// SetOnline moves between Offline and Ready as the account manager goes
// online or offline. Other states are left alone.
func (m *Machine) SetOnline(online bool) {
	to := Offline
	if online {
		to = Ready
	}
	switch m.Current() {
	case Offline, Ready, Loading:
		_ = m.Transition(to)
	}
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
