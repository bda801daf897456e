package runtime

// ring is a bounded FIFO over a fixed circular buffer. Pushing onto a full
// ring overwrites the oldest entry. The history and debug-snapshot rings
// both ride on it.
//
// Not self-locking: the Runtime's mutex guards all access.
type ring[T any] struct {
	buf   []T
	head  int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

// push appends v, evicting the oldest entry when full. Reports whether an
// eviction happened.
func (r *ring[T]) push(v T) bool {
	if r.count == len(r.buf) {
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return true
	}
	r.buf[(r.head+r.count)%len(r.buf)] = v
	r.count++
	return false
}

// all returns the entries oldest-first as a fresh slice.
func (r *ring[T]) all() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// len returns the number of live entries.
func (r *ring[T]) len() int {
	return r.count
}

// retain keeps only entries matching keep, preserving order. Used to drop
// history entries whose events no longer exist after an undo or import.
func (r *ring[T]) retain(keep func(T) bool) {
	kept := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		v := r.buf[(r.head+i)%len(r.buf)]
		if keep(v) {
			kept = append(kept, v)
		}
	}
	r.clear()
	for _, v := range kept {
		r.push(v)
	}
}

// clear drops every entry. Slots are zeroed so the buffer releases its
// references for GC.
func (r *ring[T]) clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
}
