/*
Package threadid assigns each participating worker a small dense
non-negative integer identifier that becomes reusable after the worker
ends. The identifiers index fixed-capacity per-worker structures elsewhere
in the runtime, such as hazard-pointer slots and per-worker storage, so
they must stay dense and bounded.

The pool holds a hard compile-time bound on concurrently live identifiers.
Exceeding it is a violation of an architectural limit, not a recoverable
runtime condition, and aborts the process.
*/
package threadid

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Capacity is the hard bound on concurrently live thread identifiers.
const Capacity = 1024

// A Pool issues dense identifiers in [0, Capacity). The zero Pool is valid
// and empty.
//
// Acquire and Release synchronize through a single atomic conditional
// update per slot; no operation of the pool blocks.
type Pool struct {
	inUse [Capacity]atomic.Bool

	// high is the high-water mark: the smallest upper bound known to
	// cover every identifier issued so far. Monotonically non-decreasing;
	// an upper bound on currently valid identifiers, never a live count.
	high atomic.Int64

	// bindings maps goroutine ids to acquired identifiers, for Attach
	// and Current.
	bindings sync.Map
}

// NewPool returns an empty identifier pool.
func NewPool() *Pool {
	return &Pool{}
}

// Acquire returns a free identifier in [0, Capacity), marking it in use.
// The search is linear; a slot lost to a concurrent caller is simply
// skipped. Acquire panics if all Capacity slots are in use, since that
// means the configured bound on concurrently live workers was violated.
func (p *Pool) Acquire() int {
	for id := 0; id < Capacity; id++ {
		if p.inUse[id].CompareAndSwap(false, true) {
			for {
				h := p.high.Load()
				if int64(id) < h || p.high.CompareAndSwap(h, int64(id)+1) {
					break
				}
			}
			return id
		}
	}
	panic(fmt.Sprintf("threadid: more than %v concurrently live workers", Capacity))
}

// Release marks id free for reuse. It must be called exactly once per
// Acquire, by the owner of id; anything else is a caller bug. The check
// and the free are a single conditional update, so of two racing releases
// of the same identifier exactly one panics and the slot is freed exactly
// once.
func (p *Pool) Release(id int) {
	if id < 0 || id >= Capacity || !p.inUse[id].CompareAndSwap(true, false) {
		panic(fmt.Sprintf("threadid: release of identifier %v not in use", id))
	}
}

// HighWaterMark returns the smallest upper bound known to cover every
// identifier ever issued by the pool. It is monotonically non-decreasing
// and safe to read concurrently.
func (p *Pool) HighWaterMark() int {
	return int(p.high.Load())
}

// Attach acquires an identifier and binds it to the calling goroutine, so
// that Current can find it again from anywhere in the same goroutine. The
// returned detach function removes the binding and releases the
// identifier; callers must arrange for it to run on every exit path,
// typically via defer.
func (p *Pool) Attach() (id int, detach func()) {
	g := goid()
	id = p.Acquire()
	p.bindings.Store(g, id)
	return id, func() {
		p.bindings.Delete(g)
		p.Release(id)
	}
}

// Current reports the identifier bound to the calling goroutine, if any.
func (p *Pool) Current() (int, bool) {
	if v, ok := p.bindings.Load(goid()); ok {
		return v.(int), true
	}
	return 0, false
}

var (
	defaultOnce sync.Once
	defaultPool *Pool
)

// Default returns the process-wide identifier pool, creating it on first
// use. It is never torn down or reset. Components that take an explicit
// *Pool fall back to this one when given nil.
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = NewPool()
	})
	return defaultPool
}
