package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/store"
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

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func payload(id, body string, offset time.Duration) bus.MessagePayload {
	return bus.MessagePayload{
		MsgID:          id,
		AccountID:      "acct",
		ConversationID: "bob",
		Author:         "bob",
		Body:           body,
		Timestamp:      base.Add(offset),
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	db := testDB(t)
	r := NewRecorder(db, bus.New(), nil)

	if err := r.Record(payload("m1", "v1", 0)); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(payload("m1", "v2", 0)); err != nil {
		t.Fatal(err)
	}
	msgs, err := db.ListMessages("acct", "bob", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "v1" {
		t.Fatalf("messages = %+v, want one with the first body", msgs)
	}
}

func TestRecordBatch(t *testing.T) {
	db := testDB(t)
	r := NewRecorder(db, bus.New(), nil)

	batch := []bus.MessagePayload{
		payload("m1", "one", time.Second),
		payload("m2", "two", 2*time.Second),
		payload("m1", "dup", 3*time.Second),
	}
	if err := r.RecordBatch(batch); err != nil {
		t.Fatal(err)
	}
	msgs, err := db.ListMessages("acct", "bob", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].MsgID != "m2" {
		t.Errorf("newest = %s, want m2", msgs[0].MsgID)
	}
}

func TestRecorderFollowsBus(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	r := NewRecorder(db, b, nil)
	r.Start(context.Background())
	defer r.Stop()

	b.Emit(bus.ConversationMessage, payload("m1", "hello", 0))
	b.Emit(bus.ConversationTyping, bus.TypingPayload{AccountID: "acct"})
	r.Append("acct", "signed-on", "alice signed on", base)

	deadline := time.Now().Add(5 * time.Second)
	for {
		count, err := db.MessageCount()
		if err != nil {
			t.Fatal(err)
		}
		lines, err := db.AccountLog("acct", 10)
		if err != nil {
			t.Fatal(err)
		}
		if count == 1 && len(lines) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("messages = %d, log lines = %d", count, len(lines))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
