// Package ring provides a bounded, thread-safe FIFO that drops its oldest
// element when full. It backs the audit trail, the security event bus and the
// audit archive queue.
package ring

import "sync"

const defaultCapacity = 10000

// Buffer is a fixed-capacity circular buffer.
type Buffer[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int // next write position
	tail     int // oldest element
	count    int
	capacity int

	dropped int64
}

// New creates a buffer with the given capacity (default 10000 when <= 0).
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Buffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends v, evicting the oldest element if the buffer is full.
// It reports whether an element was evicted.
func (b *Buffer[T]) Push(v T) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		var zero T
		b.items[b.tail] = zero
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		evicted = true
	}

	b.items[b.head] = v
	b.head = (b.head + 1) % b.capacity
	b.count++
	return evicted
}

// PopBatch removes and returns up to n of the oldest elements, oldest first.
func (b *Buffer[T]) PopBatch(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	var zero T
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = b.items[b.tail]
		b.items[b.tail] = zero
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

// Newest returns up to n elements without removing them, newest first.
func (b *Buffer[T]) Newest(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	idx := b.head
	for i := 0; i < n; i++ {
		idx = (idx - 1 + b.capacity) % b.capacity
		out[i] = b.items[idx]
	}
	return out
}

// Last returns the most recently pushed element.
func (b *Buffer[T]) Last() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.items[(b.head-1+b.capacity)%b.capacity], true
}

// Len returns the current number of elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Dropped returns the total number of evicted elements.
func (b *Buffer[T]) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
