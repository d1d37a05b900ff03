package status

import (
	"testing"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/rotisserie/eris"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Loading},
		{Booting, Error},
		{Loading, Offline},
		{Loading, Ready},
		{Offline, Ready},
		{Ready, Offline},
		{Ready, Stopping},
		{Offline, Stopping},
		{Error, Booting},
		{Error, Stopping},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Ready},
		{Booting, Stopping},
		{Loading, Stopping},
		{Stopping, Booting},
		{Stopping, Error},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); !eris.Is(err, ErrInvalidTransition) {
				t.Errorf("Transition(%s -> %s) error = %v, want ErrInvalidTransition", tt.from, tt.to, err)
			}
			if m.Current() != tt.from {
				t.Errorf("state = %s, want %s (should not have changed)", m.Current(), tt.from)
			}
		})
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("core.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Loading); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.CoreStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.CoreStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Loading {
		t.Errorf("change = %v -> %v, want BOOTING -> LOADING", change.From, change.To)
	}
}

// TestSetOnlineFollowsManager simulates a daemon that loads, goes online,
// is taken offline by the user and back online again.
func TestSetOnlineFollowsManager(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Loading)

	steps := []struct {
		online bool
		want   State
	}{
		{false, Offline},
		{true, Ready},
		{true, Ready},
		{false, Offline},
		{true, Ready},
	}
	for _, s := range steps {
		m.SetOnline(s.online)
		if m.Current() != s.want {
			t.Fatalf("SetOnline(%v) state = %s, want %s", s.online, m.Current(), s.want)
		}
	}

	if err := m.Transition(Stopping); err != nil {
		t.Fatal(err)
	}
	m.SetOnline(true)
	if m.Current() != Stopping {
		t.Errorf("state = %s, want STOPPING (should not have changed)", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:  {},
		Loading:  {Loading},
		Offline:  {Loading, Offline},
		Ready:    {Loading, Ready},
		Stopping: {Loading, Ready, Stopping},
		Error:    {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
