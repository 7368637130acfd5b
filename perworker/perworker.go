/*
Package perworker provides storage containers that hold one
lazily-constructed value per thread identifier. Workers address their own
slot through the dense identifiers issued by the threadid package, so the
container supports safe construction, iteration, and teardown of
per-worker state without locks: each worker mutates only its own slot, and
the only cross-worker operations are the atomic installation of backing
chunks and the release-ordered flag that marks a slot constructed.

The backing store is a sequence of fixed-size chunks installed on demand,
never a single reallocating array, so growth cannot invalidate a pointer
already handed to a live worker.
*/
package perworker

import (
	"sync/atomic"

	"github.com/parcore-go/parcore/threadid"
)

const (
	chunkSize = 64
	numChunks = threadid.Capacity / chunkSize
)

type slot[T any] struct {
	value T

	// constructed is set with release ordering after value is filled in,
	// so that ForEach observing true also observes the constructed value.
	constructed atomic.Bool
}

type chunk[T any] struct {
	slots [chunkSize]slot[T]
}

// A Storage holds at most one value of type T per thread identifier. The
// value for an identifier is constructed at most once, on first access,
// and the pointer returned for it remains valid for the lifetime of the
// Storage.
//
// Distinct identifiers may be accessed concurrently. Iteration may run
// concurrently with other workers constructing their own slots, but not
// with another iteration or with Clear.
type Storage[T any] struct {
	chunks  [numChunks]atomic.Pointer[chunk[T]]
	pool    *threadid.Pool
	cons    func() T
	release func(*T)
}

// An Option configures a Storage.
type Option[T any] func(*Storage[T])

// WithConstructor sets the function used to build a slot's initial value.
// The default constructs the zero value of T.
func WithConstructor[T any](cons func() T) Option[T] {
	return func(s *Storage[T]) { s.cons = cons }
}

// WithRelease sets a function run exactly once per constructed slot when
// the Storage is cleared.
func WithRelease[T any](release func(*T)) Option[T] {
	return func(s *Storage[T]) { s.release = release }
}

// WithPool sets the identifier pool whose high-water mark bounds
// iteration. The default is threadid.Default().
func WithPool[T any](pool *threadid.Pool) Option[T] {
	return func(s *Storage[T]) { s.pool = pool }
}

// New returns an empty Storage.
func New[T any](opts ...Option[T]) *Storage[T] {
	s := &Storage[T]{}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = threadid.Default()
	}
	return s
}

// Get returns the slot value for id, constructing it on first access. The
// caller must own id; two goroutines sharing an identifier concurrently is
// a violation of the threadid contract, not something Get defends against.
func (s *Storage[T]) Get(id int) *T {
	ch := s.chunkFor(id)
	sl := &ch.slots[id%chunkSize]
	if !sl.constructed.Load() {
		if s.cons != nil {
			sl.value = s.cons()
		}
		sl.constructed.Store(true)
	}
	return &sl.value
}

// chunkFor returns the chunk covering id, installing it if no worker has
// touched that chunk before. Installation races are resolved by
// compare-and-swap; the loser's allocation is discarded.
func (s *Storage[T]) chunkFor(id int) *chunk[T] {
	if id < 0 || id >= threadid.Capacity {
		panic("perworker: thread identifier out of range")
	}
	idx := id / chunkSize
	if ch := s.chunks[idx].Load(); ch != nil {
		return ch
	}
	fresh := &chunk[T]{}
	if s.chunks[idx].CompareAndSwap(nil, fresh) {
		return fresh
	}
	return s.chunks[idx].Load()
}

// ForEach visits every constructed slot in ascending identifier order, up
// to the pool's high-water mark. It is safe to call while other workers
// construct their own slots; a slot constructed concurrently may or may
// not be visited.
func (s *Storage[T]) ForEach(f func(id int, v *T)) {
	high := s.pool.HighWaterMark()
	for idx := 0; idx*chunkSize < high; idx++ {
		ch := s.chunks[idx].Load()
		if ch == nil {
			continue
		}
		for i := range ch.slots {
			id := idx*chunkSize + i
			if id >= high {
				break
			}
			sl := &ch.slots[i]
			if sl.constructed.Load() {
				f(id, &sl.value)
			}
		}
	}
}

// Clear runs the release function exactly once for every constructed slot
// and marks all slots unconstructed. It must not run concurrently with
// any other operation on the Storage.
func (s *Storage[T]) Clear() {
	var zero T
	for idx := range s.chunks {
		ch := s.chunks[idx].Load()
		if ch == nil {
			continue
		}
		for i := range ch.slots {
			sl := &ch.slots[i]
			if !sl.constructed.Load() {
				continue
			}
			if s.release != nil {
				s.release(&sl.value)
			}
			sl.value = zero
			sl.constructed.Store(false)
		}
	}
}
