package signal

import "testing"

func TestEmitOrderAndDisconnect(t *testing.T) {
	var s Signal[string]
	var got []string
	h1 := s.Connect(func(v string) { got = append(got, "a:"+v) })
	s.Connect(func(v string) { got = append(got, "b:"+v) })

	s.Emit("x")
	s.Disconnect(h1)
	s.Emit("y")

	want := []string{"a:x", "b:x", "b:y"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestDisconnectDuringEmit(t *testing.T) {
	var s Signal[int]
	calls := 0
	var h Handle
	h = s.Connect(func(int) {
		calls++
		s.Disconnect(h)
	})
	s.Connect(func(int) { calls++ })

	s.Emit(1)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	s.Emit(2)
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestQueryStopsAtFirstTrue(t *testing.T) {
	var q Query[int]
	asked := 0
	q.Connect(func(int) bool { asked++; return false })
	q.Connect(func(int) bool { asked++; return true })
	q.Connect(func(int) bool { asked++; return true })

	if !q.Emit(0) {
		t.Fatal("Emit() = false")
	}
	if asked != 2 {
		t.Errorf("asked = %d, want 2", asked)
	}

	var empty Query[int]
	if empty.Emit(0) {
		t.Error("empty query answered true")
	}
}
