// Package ring provides a fixed-capacity FIFO that evicts its oldest item on overflow.
//
// A Ring is owned by a single component and is not safe for concurrent use.
package ring

// Ring is a bounded queue of T. Pushing onto a full ring drops the oldest item.
type Ring[T any] struct {
	buf     []T
	head    int
	size    int
	dropped int64
}

// New creates a ring holding at most capacity items.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends item. It returns false when an older item was evicted to make room.
func (r *Ring[T]) Push(item T) bool {
	capacity := len(r.buf)
	if r.size == capacity {
		r.buf[r.head] = item
		r.head = (r.head + 1) % capacity
		r.dropped++
		return false
	}
	r.buf[(r.head+r.size)%capacity] = item
	r.size++
	return true
}

// Items returns the contents oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Last returns up to n of the most recent items, oldest first.
// n <= 0 returns everything.
func (r *Ring[T]) Last(n int) []T {
	items := r.Items()
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

// Len is the number of items held.
func (r *Ring[T]) Len() int { return r.size }

// Cap is the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Dropped counts items evicted since creation or the last Clear.
func (r *Ring[T]) Dropped() int64 { return r.dropped }

// Clear empties the ring.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head, r.size, r.dropped = 0, 0, 0
}
