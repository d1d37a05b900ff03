// Package persist writes profile documents to disk and debounces saves.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matheus3301/imcore/internal/eventloop"
	"go.uber.org/zap"
)

// DefaultDelay is how long a Saver waits before writing.
const DefaultDelay = 5 * time.Second

// WriteFile replaces path with data atomically, creating parent dirs as
// needed.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Chmod(0600)
	}
	if cerr := f.Close(); cerr != nil && werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, werr)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Saver coalesces Schedule calls into one write after a fixed delay. A
// pending save is not pushed back by later calls.
type Saver struct {
	loop   *eventloop.Loop
	delay  time.Duration
	write  func() error
	logger *zap.Logger
	timer  *eventloop.Timer
	writes int
}

// NewSaver creates a saver calling write on loop.
func NewSaver(loop *eventloop.Loop, delay time.Duration, write func() error, logger *zap.Logger) *Saver {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Saver{loop: loop, delay: delay, write: write, logger: logger}
}

// Schedule arms the save timer unless one is already pending.
func (s *Saver) Schedule() {
	if s.timer.Active() {
		return
	}
	s.timer = s.loop.Once(s.delay, s.run)
}

// Pending reports whether a save is scheduled.
func (s *Saver) Pending() bool { return s.timer.Active() }

// Flush writes immediately if a save is pending.
func (s *Saver) Flush() error {
	if !s.timer.Stop() {
		return nil
	}
	return s.save()
}

// Writes reports how many times the document was written.
func (s *Saver) Writes() int { return s.writes }

// SetDelay changes the delay used by the next Schedule.
func (s *Saver) SetDelay(d time.Duration) {
	if d > 0 {
		s.delay = d
	}
}

func (s *Saver) run() {
	if err := s.save(); err != nil {
		s.logger.Error("save failed", zap.Error(err))
	}
}

func (s *Saver) save() error {
	s.writes++
	return s.write()
}
