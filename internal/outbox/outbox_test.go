package outbox

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/credential"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/protocols/mock"
	"github.com/matheus3301/imcore/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type harness struct {
	loop  *eventloop.Loop
	bus   *bus.Bus
	proto *mock.Protocol
	db    *store.DB
	acct  *account.Account
	box   *Outbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loop := eventloop.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	logger := zap.NewNop()
	reg := protocol.NewRegistry()
	proto := mock.New()
	if err := reg.Register(proto); err != nil {
		t.Fatal(err)
	}
	creds := credential.NewManager(loop, logger)
	if err := creds.Register(credential.NewMemory()); err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	env := account.NewEnv(loop, logger, b, reg, creds, nil, nil)
	mgr := account.NewManager(env, "", time.Second)
	a := mgr.NewAccount("alice", mock.ID)
	mgr.Add(a)
	a.SetEnabled(true)

	db := testDB(t)
	box := New(db, env)
	t.Cleanup(box.Close)
	return &harness{loop: loop, bus: b, proto: proto, db: db, acct: a, box: box}
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	h.acct.Connect()
	h.loop.Flush()
	if !h.acct.IsConnected() {
		t.Fatalf("account not connected: %v", h.acct.Error())
	}
}

func kinds(ch <-chan bus.Event) []string {
	var out []string
	for {
		select {
		case evt := <-ch:
			out = append(out, evt.Kind)
		default:
			return out
		}
	}
}

func TestQueuedWhileOfflineSentOnSignOn(t *testing.T) {
	h := newHarness(t)
	ch, unsub := h.bus.Subscribe("outbox.", 10)
	defer unsub()

	h.box.Enqueue(h.acct.ID(), "bob", "first", "m1")
	h.box.Enqueue(h.acct.ID(), "bob", "second", "m2")
	h.loop.Flush()

	pending, err := h.db.PendingOutbox(h.acct.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if len(h.proto.Stats().Sent) != 0 {
		t.Fatal("sent while offline")
	}

	h.connect(t)

	sent := h.proto.Stats().Sent
	if len(sent) != 2 || sent[0].Body != "first" || sent[1].Body != "second" {
		t.Fatalf("sent = %+v", sent)
	}
	for _, id := range []string{"m1", "m2"} {
		status, err := h.db.OutboxStatus(id)
		if err != nil {
			t.Fatal(err)
		}
		if status != "sent" {
			t.Errorf("%s status = %q, want sent", id, status)
		}
	}
	got := kinds(ch)
	want := []string{bus.OutboxQueued, bus.OutboxQueued, bus.OutboxSent, bus.OutboxSent}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEnqueueWhileConnectedSendsNow(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	h.box.Enqueue(h.acct.ID(), "bob", "hi", "m1")
	h.loop.Flush()

	if n := len(h.proto.Stats().Sent); n != 1 {
		t.Fatalf("sent %d messages, want 1", n)
	}
}

func TestSendFailureMarksEntry(t *testing.T) {
	h := newHarness(t)
	h.proto.FailSend(errors.New("rejected"))
	ch, unsub := h.bus.Subscribe(bus.OutboxFailed, 10)
	defer unsub()

	h.box.Enqueue(h.acct.ID(), "bob", "hi", "m1")
	h.loop.Flush()
	h.connect(t)

	status, err := h.db.OutboxStatus("m1")
	if err != nil {
		t.Fatal(err)
	}
	if status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
	select {
	case evt := <-ch:
		p := evt.Payload.(bus.OutboxPayload)
		if p.Error != "rejected" || p.Recipient != "bob" {
			t.Errorf("payload = %+v", p)
		}
	default:
		t.Error("no failure event")
	}
}

func TestOtherAccountsUntouched(t *testing.T) {
	h := newHarness(t)
	h.box.Enqueue("someone-else", "bob", "hi", "m1")
	h.loop.Flush()
	h.connect(t)

	if n := len(h.proto.Stats().Sent); n != 0 {
		t.Fatalf("sent %d messages of another account", n)
	}
	status, _ := h.db.OutboxStatus("m1")
	if status != "queued" {
		t.Errorf("status = %q, want queued", status)
	}
}
