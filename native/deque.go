package native

import "sync/atomic"

const initialDequeCapacity = 32

// A deque is a Chase-Lev work-stealing double-ended queue. The owning
// worker pushes and pops at the bottom; thieves steal from the top, the
// opposite end, which keeps their compare-and-swap traffic away from the
// owner's hot end. The backing ring grows on demand and is replaced
// atomically, so thieves can keep reading a stale ring safely.
//
// Go's atomic operations are sequentially consistent, which subsumes the
// fences the original algorithm needs; the one delicate interleaving left
// is the last-element race between pop and steal, which both sides decide
// with a compare-and-swap on top.
type deque struct {
	top    atomic.Int64
	_      [56]byte // keep top and bottom on separate cache lines
	bottom atomic.Int64
	_      [56]byte
	ring   atomic.Pointer[ring]
}

// A ring is immutable storage for the deque: when full it is replaced
// wholesale rather than mutated in place.
type ring struct {
	capacity int64
	buffer   []*task
}

func newRing(capacity int64) *ring {
	return &ring{capacity: capacity, buffer: make([]*task, capacity)}
}

func (r *ring) get(i int64) *task    { return r.buffer[i%r.capacity] }
func (r *ring) put(i int64, t *task) { r.buffer[i%r.capacity] = t }

func (d *deque) init() {
	d.ring.Store(newRing(initialDequeCapacity))
}

// push adds t at the bottom. Owner only.
func (d *deque) push(t *task) {
	bottom := d.bottom.Load()
	top := d.top.Load()
	r := d.ring.Load()

	if bottom-top >= r.capacity-1 {
		r = d.grow(bottom, top, r)
		d.ring.Store(r)
	}

	r.put(bottom, t)
	d.bottom.Store(bottom + 1)
}

// pop removes and returns the task at the bottom, or nil if the deque is
// empty or a thief won the race for the last element. Owner only.
func (d *deque) pop() *task {
	bottom := d.bottom.Load() - 1
	r := d.ring.Load()
	d.bottom.Store(bottom)

	top := d.top.Load()
	if top > bottom {
		// Already empty; undo the tentative decrement.
		d.bottom.Store(bottom + 1)
		return nil
	}

	t := r.get(bottom)
	if top == bottom {
		// Last element: a thief may be claiming it at the same time.
		// Whoever advances top wins.
		if !d.top.CompareAndSwap(top, top+1) {
			t = nil
		}
		d.bottom.Store(bottom + 1)
		return t
	}
	return t
}

// steal removes and returns the task at the top, or nil if the deque is
// empty or the race for the element was lost. Safe for any number of
// concurrent thieves.
func (d *deque) steal() *task {
	top := d.top.Load()
	bottom := d.bottom.Load()
	if top >= bottom {
		return nil
	}
	r := d.ring.Load()
	t := r.get(top)
	if !d.top.CompareAndSwap(top, top+1) {
		return nil
	}
	return t
}

func (d *deque) grow(bottom, top int64, old *ring) *ring {
	bigger := newRing(old.capacity * 2)
	for i := top; i < bottom; i++ {
		bigger.put(i, old.get(i))
	}
	return bigger
}

// size is a snapshot and may be stale immediately.
func (d *deque) size() int64 {
	n := d.bottom.Load() - d.top.Load()
	if n < 0 {
		return 0
	}
	return n
}
