package request

import (
	"errors"
	"testing"

	"github.com/matheus3301/imcore/internal/bus"
	"go.uber.org/zap"
)

func newBroker() *Broker {
	return NewBroker(bus.New(), zap.NewNop(), nil)
}

func TestAnswerPassword(t *testing.T) {
	b := newBroker()
	var got PasswordAnswer
	cancelled := false
	r := b.RequestPassword("acct-1", "acct-1", "Enter password", "alice", func(a PasswordAnswer) {
		got = a
	}, func() { cancelled = true })

	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	if err := b.AnswerPassword(r.ID, PasswordAnswer{Password: "pw", Remember: true}); err != nil {
		t.Fatal(err)
	}
	if got.Password != "pw" || !got.Remember {
		t.Errorf("answer = %+v", got)
	}
	if cancelled {
		t.Error("cancel callback ran on answer")
	}
	if b.Len() != 0 {
		t.Error("request still pending after answer")
	}
	if err := b.AnswerPassword(r.ID, PasswordAnswer{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("second answer = %v, want ErrNotFound", err)
	}
}

func TestDismissRunsCancel(t *testing.T) {
	b := newBroker()
	cancelled := false
	r := b.RequestPassword("h", "a", "t", "p", nil, func() { cancelled = true })
	if err := b.Dismiss(r.ID); err != nil {
		t.Fatal(err)
	}
	if !cancelled {
		t.Error("cancel callback not run")
	}
}

func TestAnswerWrongKind(t *testing.T) {
	b := newBroker()
	r := b.Notify("h", "a", "Oops", "Something failed", "")
	if err := b.AnswerPassword(r.ID, PasswordAnswer{}); !errors.Is(err, ErrWrongKind) {
		t.Errorf("AnswerPassword(notify) = %v, want ErrWrongKind", err)
	}
}

func TestCloseWithHandleSkipsCallbacks(t *testing.T) {
	b := newBroker()
	ran := false
	b.RequestPassword("conn-1", "a", "t", "p", func(PasswordAnswer) { ran = true }, func() { ran = true })
	b.Info("conn-1", "a", "Pair", "scan", "qr")
	b.Notify("conn-2", "a", "t", "p", "")

	closed := 0
	b.Closed.Connect(func(*Request) { closed++ })

	if n := b.CloseWithHandle("conn-1"); n != 2 {
		t.Errorf("CloseWithHandle() = %d, want 2", n)
	}
	if ran {
		t.Error("callbacks ran on close by handle")
	}
	if closed != 2 {
		t.Errorf("Closed emitted %d times, want 2", closed)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestOpenedSignal(t *testing.T) {
	b := newBroker()
	var kinds []Kind
	b.Opened.Connect(func(r *Request) { kinds = append(kinds, r.Kind) })
	b.Notify("h", "a", "t", "p", "s")
	b.Info("h", "a", "t", "p", "d")
	if len(kinds) != 2 || kinds[0] != KindNotify || kinds[1] != KindInfo {
		t.Errorf("opened kinds = %v", kinds)
	}
	if len(b.Pending()) != 2 {
		t.Errorf("Pending() len = %d", len(b.Pending()))
	}
}
