/*
Package bigatomic provides an atomic cell for payload types wider than the
machine's native atomic width. A Cell holds two buffers of the payload type
plus a version counter whose low bit selects the currently live buffer: a
writer fills the inactive buffer and then flips the version, and a reader
snapshots the version, copies the indicated buffer, and re-reads the
version to detect a racing flip, retrying if the two reads differ. The
retry loop is required by the seqlock discipline; a single unverified read
could observe a torn value.

Load never blocks and never fails; its retries are bounded by write
contention only. Store and CompareAndSwap serialize against each other on
an internal spin lock, so the exchange of a Cell requires no lock shared
with readers, and concurrent writers need no external synchronization.
*/
package bigatomic

import (
	"runtime"
	"sync/atomic"
)

// A Cell is an atomic container for a value of type T, where T may be
// arbitrarily wide. T must be a trivially-copyable value type: it is
// copied between buffers without deep cloning, and CompareAndSwap relies
// on its == comparison. The zero Cell holds the zero value of T.
type Cell[T comparable] struct {
	// version's low bit selects the live buffer. Writers advance it by
	// one per store, after filling the buffer the new value selects.
	version atomic.Uint64
	bufs    [2]T

	// writing serializes Store and CompareAndSwap. Readers never touch
	// it.
	writing atomic.Bool
}

// New returns a Cell holding v.
func New[T comparable](v T) *Cell[T] {
	c := &Cell[T]{}
	c.bufs[0] = v
	return c
}

// Load returns the current value. It retries while a concurrent store's
// version flip brackets the buffer copy.
func (c *Cell[T]) Load() T {
	for {
		v1 := c.version.Load()
		val := c.bufs[v1&1]
		v2 := c.version.Load()
		if v1 == v2 {
			return val
		}
	}
}

// Store publishes v as the current value. Writers fill the buffer that no
// reader is directed at, then advance the version to flip visibility.
func (c *Cell[T]) Store(v T) {
	c.lock()
	ver := c.version.Load()
	c.bufs[(ver+1)&1] = v
	c.version.Store(ver + 1)
	c.unlock()
}

// CompareAndSwap installs desired and reports true if the live value
// equals expected at the instant of the check; otherwise it reports false
// without side effects.
func (c *Cell[T]) CompareAndSwap(expected, desired T) bool {
	c.lock()
	ver := c.version.Load()
	if c.bufs[ver&1] != expected {
		c.unlock()
		return false
	}
	c.bufs[(ver+1)&1] = desired
	c.version.Store(ver + 1)
	c.unlock()
	return true
}

func (c *Cell[T]) lock() {
	for !c.writing.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (c *Cell[T]) unlock() {
	c.writing.Store(false)
}
