package observatory

import "iter"

const ringMinCapacity = 16

// ring is a growable circular buffer used as a double ended queue.
//
// The zero value is an empty ring.
type ring[T any] struct {
	buf  []T
	head int
	len  int
}

// Len returns the number of values in the ring.
func (r *ring[T]) Len() int {
	return r.len
}

// PushBack appends a value at the tail.
func (r *ring[T]) PushBack(value T) {
	r.grow()
	r.buf[(r.head+r.len)%len(r.buf)] = value
	r.len++
}

// PushFront prepends a value at the head.
func (r *ring[T]) PushFront(value T) {
	r.grow()
	r.head = (r.head - 1 + len(r.buf)) % len(r.buf)
	r.buf[r.head] = value
	r.len++
}

// PopFront removes and returns the head value.
func (r *ring[T]) PopFront() (out T, ok bool) {
	if r.len == 0 {
		return
	}
	var zero T
	out, ok = r.buf[r.head], true
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.len--
	if r.len == 0 {
		r.head = 0
	}
	return
}

// Each walks the ring from head to tail.
func (r *ring[T]) Each() iter.Seq[T] {
	return func(yield func(T) bool) {
		for index := range r.len {
			if !yield(r.buf[(r.head+index)%len(r.buf)]) {
				return
			}
		}
	}
}

func (r *ring[T]) grow() {
	if r.len < len(r.buf) {
		return
	}
	next := make([]T, max(ringMinCapacity, 2*len(r.buf)))
	for index := range r.len {
		next[index] = r.buf[(r.head+index)%len(r.buf)]
	}
	r.buf = next
	r.head = 0
}
