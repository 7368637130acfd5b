package hazard

import "sync/atomic"

// A Stack is a lock-free LIFO stack safe for arbitrary concurrent use.
// The zero Stack is valid and empty.
//
// Values pushed are never duplicated or lost: for any sequence of
// concurrent pushes and pops, the multiset of pushed values equals the
// multiset of popped values plus whatever remains on the stack. A stack
// used by a single goroutine observes strict LIFO order.
type Stack[T any] struct {
	head    atomic.Pointer[node[T]]
	free    atomic.Pointer[node[T]]
	records atomic.Pointer[record[T]]
	size    atomic.Int64
}

// Push places v on top of the stack. The node is recycled from the free
// list when possible, so a steady-state stack allocates nothing; with the
// free list observed empty, Push allocates without touching a participant
// record.
func (s *Stack[T]) Push(v T) {
	var n *node[T]
	if s.free.Load() != nil {
		r := s.acquireRecord()
		n = s.popFree(r)
		s.releaseRecord(r)
	}
	if n == nil {
		n = &node[T]{}
	}
	n.value = v
	for {
		head := s.head.Load()
		n.next.Store(head)
		if s.head.CompareAndSwap(head, n) {
			s.size.Add(1)
			return
		}
	}
}

// Pop removes and returns the value on top of the stack. The second
// return value is false if the stack was observed empty.
//
// Pop publishes its intent to dereference the current head as a hazard
// pointer, re-reads the head to confirm it was not already unlinked, then
// unlinks it with a compare-and-swap. The unlinked node is retired rather
// than recycled immediately; see the package documentation.
func (s *Stack[T]) Pop() (T, bool) {
	r := s.acquireRecord()
	defer s.releaseRecord(r)
	for {
		head := s.head.Load()
		if head == nil {
			var zero T
			return zero, false
		}
		r.hazard.Store(head)
		if s.head.Load() != head {
			continue
		}
		next := head.next.Load()
		if s.head.CompareAndSwap(head, next) {
			v := head.value
			r.hazard.Store(nil)
			s.retire(r, head)
			s.size.Add(-1)
			return v, true
		}
	}
}

// Empty reports whether the stack appears empty. Under concurrent
// mutation this is a best-effort snapshot; with no concurrent writers it
// is exact.
func (s *Stack[T]) Empty() bool {
	return s.head.Load() == nil
}

// Size reports the apparent number of values on the stack. Under
// concurrent mutation this is a best-effort snapshot; with no concurrent
// writers it is exact.
func (s *Stack[T]) Size() int {
	n := s.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Clear drains the stack. Values pushed concurrently with Clear may or
// may not be removed.
func (s *Stack[T]) Clear() {
	for {
		if _, ok := s.Pop(); !ok {
			return
		}
	}
}
