// Package signal provides typed, synchronous observer lists.
//
// Handlers run on the emitting goroutine in connection order. Handlers
// connected or disconnected during an emission take effect on the next one.
package signal

import "sync"

// Handle identifies a connected handler.
type Handle uint64

// Signal delivers a value of type T to every connected handler.
type Signal[T any] struct {
	mu       sync.Mutex
	next     Handle
	handlers []entry[func(T)]
}

type entry[F any] struct {
	id Handle
	fn F
}

// Connect registers fn and returns a handle for Disconnect.
func (s *Signal[T]) Connect(fn func(T)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.handlers = append(s.handlers, entry[func(T)]{id: s.next, fn: fn})
	return s.next
}

// Disconnect removes the handler. Unknown handles are ignored.
func (s *Signal[T]) Disconnect(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = remove(s.handlers, h)
}

// Emit calls every handler with v.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]entry[func(T)], len(s.handlers))
	copy(snapshot, s.handlers)
	s.mu.Unlock()

	for _, e := range snapshot {
		e.fn(v)
	}
}

// Len reports the number of connected handlers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// Query is a signal whose handlers answer a question. Emission stops at
// the first handler that returns true.
type Query[T any] struct {
	mu       sync.Mutex
	next     Handle
	handlers []entry[func(T) bool]
}

// Connect registers fn and returns a handle for Disconnect.
func (q *Query[T]) Connect(fn func(T) bool) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.handlers = append(q.handlers, entry[func(T) bool]{id: q.next, fn: fn})
	return q.next
}

// Disconnect removes the handler.
func (q *Query[T]) Disconnect(h Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = remove(q.handlers, h)
}

// Emit asks handlers in order and reports whether one answered true.
func (q *Query[T]) Emit(v T) bool {
	q.mu.Lock()
	snapshot := make([]entry[func(T) bool], len(q.handlers))
	copy(snapshot, q.handlers)
	q.mu.Unlock()

	for _, e := range snapshot {
		if e.fn(v) {
			return true
		}
	}
	return false
}

func remove[F any](list []entry[F], h Handle) []entry[F] {
	for i, e := range list {
		if e.id == h {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
