package analytics

import "sync"

// Ring is a fixed-capacity circular buffer with FIFO eviction. Appending
// beyond capacity overwrites the oldest entry. All methods are safe for
// concurrent use.
type Ring[T any] struct {
	mu    sync.RWMutex
	buf   []T
	head  int // index of the oldest entry
	count int
}

// NewRing creates a ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append adds v, evicting the oldest entry when the ring is full.
func (r *Ring[T]) Append(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Last returns up to n entries in insertion order, oldest first. It always
// returns a non-nil slice so callers can marshal it as an empty JSON array.
func (r *Ring[T]) Last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	out := make([]T, 0, n)
	start := r.count - n
	for i := start; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

// Snapshot returns all entries in insertion order.
func (r *Ring[T]) Snapshot() []T {
	return r.Last(r.Cap())
}
