// Package buffer holds a fixed-size ring used to keep recent history.
package buffer

// Ring keeps the last Cap() values added. The zero value holds nothing.
type Ring[T any] struct {
	slots []T
	next  int
	full  bool
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{slots: make([]T, capacity)}
}

// Add stores value, overwriting the oldest one when the ring is full.
func (r *Ring[T]) Add(value T) {
	if r == nil || len(r.slots) == 0 {
		return
	}
	r.slots[r.next] = value
	r.next++
	if r.next == len(r.slots) {
		r.next = 0
		r.full = true
	}
}

func (r *Ring[T]) Len() int {
	if r == nil {
		return 0
	}
	if r.full {
		return len(r.slots)
	}
	return r.next
}

func (r *Ring[T]) Cap() int {
	if r == nil {
		return 0
	}
	return len(r.slots)
}

// Last returns up to n values, oldest first. n <= 0 means all of them.
func (r *Ring[T]) Last(n int) []T {
	size := r.Len()
	if size == 0 {
		return nil
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]T, n)
	start := r.next - n
	if start < 0 {
		start += len(r.slots)
	}
	for i := range out {
		out[i] = r.slots[(start+i)%len(r.slots)]
	}
	return out
}

// List returns every stored value, oldest first.
func (r *Ring[T]) List() []T {
	return r.Last(0)
}
