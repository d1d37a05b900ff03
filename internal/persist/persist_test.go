package persist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/eventloop"
	"go.uber.org/zap"
)

func TestWriteFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.xml")
	if err := WriteFile(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want two", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, temp file left behind", len(entries))
	}
}

func TestSaverCoalesces(t *testing.T) {
	loop := eventloop.NewManual(time.Unix(0, 0))
	calls := 0
	s := NewSaver(loop, 5*time.Second, func() error { calls++; return nil }, zap.NewNop())

	s.Schedule()
	loop.Advance(3 * time.Second)
	s.Schedule()
	s.Schedule()
	loop.Advance(2 * time.Second)
	if calls != 1 {
		t.Fatalf("calls after 5s = %d, want 1", calls)
	}
	if s.Pending() {
		t.Error("save still pending after write")
	}

	loop.Advance(10 * time.Second)
	if calls != 1 {
		t.Errorf("calls without new Schedule = %d, want 1", calls)
	}
}

func TestSaverFlush(t *testing.T) {
	loop := eventloop.NewManual(time.Unix(0, 0))
	failing := errors.New("disk full")
	s := NewSaver(loop, 0, func() error { return failing }, zap.NewNop())

	if err := s.Flush(); err != nil {
		t.Errorf("Flush with nothing pending = %v", err)
	}
	s.Schedule()
	if err := s.Flush(); !errors.Is(err, failing) {
		t.Errorf("Flush = %v, want %v", err, failing)
	}
	if s.Writes() != 1 {
		t.Errorf("Writes() = %d, want 1", s.Writes())
	}
	loop.Advance(DefaultDelay)
	if s.Writes() != 1 {
		t.Errorf("timer fired after Flush")
	}
}
