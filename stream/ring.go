package stream

import (
	"sync"
)

// Ring keeps the last size values added, oldest first.
type Ring[T any] struct {
	mu     sync.Mutex
	buffer []T
	write  int
	count  int
}

func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{buffer: make([]T, size)}
}

// Add inserts value, overwriting the oldest when full.
func (r *Ring[T]) Add(value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer[r.write] = value
	r.write = (r.write + 1) % len(r.buffer)
	if r.count < len(r.buffer) {
		r.count++
	}
}

// Get returns a copy of the contents, oldest first.
func (r *Ring[T]) Get() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := len(r.buffer)
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buffer[(r.write+size-r.count+i)%size])
	}
	return out
}

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Last returns the newest value; ok is false when empty.
func (r *Ring[T]) Last() (v T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return v, false
	}
	size := len(r.buffer)
	return r.buffer[(r.write+size-1)%size], true
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buffer)
	r.write, r.count = 0, 0
}
