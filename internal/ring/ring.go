// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring implements a bounded FIFO that overwrites its oldest
// element when full.
package ring

// Buffer is a fixed capacity FIFO. It is not safe for concurrent use.
type Buffer[T any] struct {
	data    []T
	head, n int
	dropped int
}

// NewBuffer returns a Buffer holding at most n elements.
func NewBuffer[T any](n int) *Buffer[T] {
	return &Buffer[T]{data: make([]T, n)}
}

// Len returns the number of queued elements.
func (r *Buffer[T]) Len() int { return r.n }

// Size returns the capacity of the buffer.
func (r *Buffer[T]) Size() int { return len(r.data) }

// Dropped returns the number of elements that have been overwritten
// before being read.
func (r *Buffer[T]) Dropped() int { return r.dropped }

// Push appends v, overwriting the oldest element if the buffer is full.
// It reports whether an element was overwritten.
func (r *Buffer[T]) Push(v T) bool {
	if len(r.data) == 0 {
		r.dropped++
		return true
	}
	if r.n == len(r.data) {
		r.data[r.head] = v
		r.head = (r.head + 1) % len(r.data)
		r.dropped++
		return true
	}
	r.data[(r.head+r.n)%len(r.data)] = v
	r.n++
	return false
}

// Pop removes and returns the oldest element.
func (r *Buffer[T]) Pop() (v T, ok bool) {
	if r.n == 0 {
		return v, false
	}
	var zero T
	v = r.data[r.head]
	r.data[r.head] = zero
	r.head = (r.head + 1) % len(r.data)
	r.n--
	return v, true
}

// CopyTo copies queued elements, oldest first, into dst without removing
// them, and returns the number copied.
func (r *Buffer[T]) CopyTo(dst []T) int {
	if r.n == 0 {
		return 0
	}
	end := r.head + r.n
	if end <= len(r.data) {
		return copy(dst, r.data[r.head:end])
	}
	n := copy(dst, r.data[r.head:])
	n += copy(dst[n:], r.data[:end-len(r.data)])
	return n
}

// Reset discards all queued elements.
func (r *Buffer[T]) Reset() {
	clear(r.data)
	r.head, r.n = 0, 0
}
