// Package eventloop runs the core on a single goroutine.
//
// Every Account, Connection, BuddyList and Conversation method must be
// called from the loop. Other goroutines hand work to the loop with Post
// or Call, and blocking I/O is dispatched with Await, whose continuation
// resumes on the loop.
//
// A manual loop (NewManual) never starts a goroutine and keeps a virtual
// clock. Tests drive it with Flush and Advance.
package eventloop

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Call when the loop is no longer running.
var ErrStopped = errors.New("event loop stopped")

// Loop is a serial executor with timers.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	timers   timerHeap
	seq      uint64
	inflight int
	wake     chan struct{}
	logger   *zap.Logger

	manual bool
	now    time.Time

	done chan struct{}
}

// New creates a loop driven by the wall clock. Call Run to start it.
func New(logger *zap.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// NewManual creates a loop with a virtual clock starting at start.
func NewManual(start time.Time) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: zap.NewNop(),
		manual: true,
		now:    start,
		done:   make(chan struct{}),
	}
}

// Now returns the loop's notion of the current time.
func (l *Loop) Now() time.Time {
	if !l.manual {
		return time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Post queues f to run on the loop. Safe to call from any goroutine.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	l.queue = append(l.queue, f)
	l.mu.Unlock()
	l.signal()
}

// Call runs f on the loop and waits for it to finish.
// It must not be called from the loop itself.
func (l *Loop) Call(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		f()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Once schedules f to run once after d.
func (l *Loop) Once(d time.Duration, f func()) *Timer {
	return l.schedule(d, 0, f)
}

// Every schedules f to run every d until the timer is stopped.
func (l *Loop) Every(d time.Duration, f func()) *Timer {
	if d <= 0 {
		panic("eventloop: non-positive interval for Every")
	}
	return l.schedule(d, d, f)
}

func (l *Loop) schedule(d, period time.Duration, f func()) *Timer {
	l.mu.Lock()
	t := &Timer{
		loop:     l,
		deadline: l.nowLocked().Add(d),
		period:   period,
		f:        f,
		index:    -1,
	}
	l.pushLocked(t)
	l.mu.Unlock()
	l.signal()
	return t
}

// Await runs work on its own goroutine and delivers the result to done on
// the loop. The manual loop's Flush waits for outstanding work.
func Await[T any](l *Loop, ctx context.Context, work func(context.Context) (T, error), done func(T, error)) {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()

	go func() {
		v, err := work(ctx)
		l.mu.Lock()
		l.inflight--
		l.queue = append(l.queue, func() { done(v, err) })
		l.mu.Unlock()
		l.signal()
	}()
}

// Run processes queued work and timers until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l.manual {
		return fmt.Errorf("manual loop cannot Run")
	}
	defer close(l.done)

	var sleep *time.Timer
	defer func() {
		if sleep != nil {
			sleep.Stop()
		}
	}()

	for {
		if l.step() {
			continue
		}

		var timeout <-chan time.Time
		l.mu.Lock()
		if len(l.timers) > 0 {
			wait := time.Until(l.timers[0].deadline)
			if sleep == nil {
				sleep = time.NewTimer(wait)
			} else {
				sleep.Reset(wait)
			}
			timeout = sleep.C
		}
		l.mu.Unlock()

		select {
		case <-l.wake:
		case <-timeout:
		case <-ctx.Done():
			return ctx.Err()
		}
		if sleep != nil && !sleep.Stop() {
			select {
			case <-sleep.C:
			default:
			}
		}
	}
}

// Flush runs queued work and due timers of a manual loop until nothing is
// left, waiting for outstanding Await goroutines.
func (l *Loop) Flush() {
	for {
		if l.step() {
			continue
		}
		l.mu.Lock()
		pending := l.inflight
		l.mu.Unlock()
		if pending == 0 {
			return
		}
		<-l.wake
	}
}

// Advance moves the virtual clock forward by d, firing timers in deadline
// order and flushing after each one.
func (l *Loop) Advance(d time.Duration) {
	if !l.manual {
		panic("eventloop: Advance on a wall-clock loop")
	}
	l.mu.Lock()
	target := l.now.Add(d)
	l.mu.Unlock()

	for {
		l.Flush()
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].deadline.After(target) {
			l.now = target
			l.mu.Unlock()
			l.Flush()
			return
		}
		l.now = l.timers[0].deadline
		l.mu.Unlock()
	}
}

// PendingTimers reports how many timers are armed.
func (l *Loop) PendingTimers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// step runs one batch of queued work or one due timer. It reports whether
// anything ran.
func (l *Loop) step() bool {
	l.mu.Lock()
	if len(l.queue) > 0 {
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()
		for _, f := range batch {
			l.run(f)
		}
		return true
	}
	if len(l.timers) > 0 && !l.timers[0].deadline.After(l.nowLocked()) {
		t := l.timers[0]
		if t.period > 0 {
			t.deadline = t.deadline.Add(t.period)
			if now := l.nowLocked(); t.deadline.Before(now) {
				t.deadline = now.Add(t.period)
			}
			heap.Fix(&l.timers, t.index)
		} else {
			heap.Pop(&l.timers)
		}
		f := t.f
		l.mu.Unlock()
		l.run(f)
		return true
	}
	l.mu.Unlock()
	return false
}

func (l *Loop) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	f()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) nowLocked() time.Time {
	if l.manual {
		return l.now
	}
	return time.Now()
}

func (l *Loop) pushLocked(t *Timer) {
	l.seq++
	t.seq = l.seq
	heap.Push(&l.timers, t)
}
