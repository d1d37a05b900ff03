package eventloop

import (
	"container/heap"
	"time"
)

// Timer is a pending Once or Every callback.
type Timer struct {
	loop     *Loop
	deadline time.Time
	period   time.Duration
	f        func()
	index    int
	seq      uint64
}

// Stop cancels the timer. It reports whether the timer was still armed.
// Safe on a nil Timer.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&l.timers, t.index)
	return true
}

// Reset moves the next fire time to now+d, re-arming a fired or stopped
// timer. Periodic timers keep their period.
func (t *Timer) Reset(d time.Duration) {
	l := t.loop
	l.mu.Lock()
	t.deadline = l.nowLocked().Add(d)
	if t.index >= 0 {
		heap.Fix(&l.timers, t.index)
	} else {
		l.pushLocked(t)
	}
	l.mu.Unlock()
	l.signal()
}

// Active reports whether the timer is armed.
func (t *Timer) Active() bool {
	if t == nil {
		return false
	}
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	return t.index >= 0
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
