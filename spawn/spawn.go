/*
Package spawn provides a scheduler backend that delegates task execution
to the Go runtime scheduler: the right half of a fork runs in a fresh
goroutine when a worker slot is free, and on the calling goroutine
otherwise, and joining is a WaitGroup wait. The Go runtime's own
scheduling takes the place of explicit work stealing, which makes this
backend a thin adapter around an external parallel runtime rather than a
worker pool of its own.

Live spawned goroutines are bounded by the worker count through a slot
semaphore. The bound keeps the goroutine fan-out of fine-grained
recursions flat and keeps thread identifiers dense below NumWorkers; a
fork that cannot reserve a slot degrades to running both halves inline,
which is always a valid execution of the fork-join contract.

Because the goroutine scheduler owns the worker threads, an explicit
worker-count override is meaningless under this model; requesting one is a
configuration error reported at construction, not silently ignored. The
effective parallelism is whatever runtime.GOMAXPROCS reports.
*/
package spawn

import (
	"runtime"
	"sync"

	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/internal"
	"github.com/parcore-go/parcore/threadid"
)

// A Scheduler delegates fork-join execution to the Go runtime. The zero
// value is not valid; use New.
type Scheduler struct {
	pool *threadid.Pool

	// sem holds one slot per worker. Every live attachment to the pool
	// owns a slot, so identifiers never reach NumWorkers.
	sem chan struct{}
}

// An Option configures a Scheduler.
type Option func(*config)

type config struct {
	pool    *threadid.Pool
	workers int
}

// WithPool sets the thread-identifier pool used to give task goroutines
// dense identifiers. The default is a pool private to the scheduler;
// sharing one pool between schedulers moves the bound on identifiers from
// each scheduler to the pool's combined users.
func WithPool(pool *threadid.Pool) Option {
	return func(c *config) { c.pool = pool }
}

// WithWorkers exists so that backend construction sites can be written
// uniformly, but the spawn backend cannot honor a worker-count override:
// the Go runtime owns the threads. New panics when it is supplied with a
// count other than runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// New returns a spawn-backed Scheduler.
func New(opts ...Option) *Scheduler {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.workers != 0 && c.workers != runtime.GOMAXPROCS(0) {
		panic("spawn: worker count overrides are not supported by this backend")
	}
	if c.pool == nil {
		c.pool = threadid.NewPool()
	}
	return &Scheduler{
		pool: c.pool,
		sem:  make(chan struct{}, runtime.GOMAXPROCS(0)),
	}
}

// Pool returns the thread-identifier pool workers attach to.
func (s *Scheduler) Pool() *threadid.Pool { return s.pool }

// NumWorkers reports runtime.GOMAXPROCS(0), the parallelism the Go
// runtime provides.
func (s *Scheduler) NumWorkers() int { return runtime.GOMAXPROCS(0) }

// WorkerID reports the identifier bound to the calling goroutine for the
// duration of its task, or 0 outside one.
func (s *Scheduler) WorkerID() int {
	if id, ok := s.pool.Current(); ok {
		return id
	}
	return 0
}

// ForkJoin executes both thunks to completion and returns only when both
// have terminated. The left thunk runs on the calling goroutine; the
// right runs in a fresh goroutine when a worker slot is free. If one or
// both thunks panic, the panics are recovered at the fork, and ForkJoin
// re-raises the left-most recovered panic value after both are done.
func (s *Scheduler) ForkJoin(left, right parcore.Thunk) {
	s.rooted(func() { s.forkJoin(left, right) })
}

// ParallelFor invokes body(i) for every i in [low, high), recursively
// splitting the range until a subrange fits in one leaf of at most the
// effective grain. The left-most panic raised by a leaf is re-raised
// after every leaf has terminated.
func (s *Scheduler) ParallelFor(low, high, grain int, body parcore.RangeFunc) {
	leaf := internal.LeafSize(low, high, grain, s.NumWorkers())
	s.rooted(func() {
		var recur func(lo, hi int)
		recur = func(lo, hi int) {
			if hi-lo <= leaf {
				for i := lo; i < hi; i++ {
					body(i)
				}
				return
			}
			mid := internal.Mid(lo, hi)
			s.forkJoin(
				func() { recur(lo, mid) },
				func() { recur(mid, hi) },
			)
		}
		recur(low, high)
	})
}

// forkJoin runs both thunks from an already-bound goroutine. The right
// thunk goes to a fresh goroutine only when a worker slot can be
// reserved; otherwise both halves run inline, so the number of live
// goroutines and pool attachments never exceeds the worker count.
func (s *Scheduler) forkJoin(left, right parcore.Thunk) {
	var leftPanic, rightPanic interface{}
	select {
	case s.sem <- struct{}{}:
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer func() {
				rightPanic = internal.WrapPanic(recover())
				<-s.sem
				wg.Done()
			}()
			_, detach := s.pool.Attach()
			defer detach()
			right()
		}()
		leftPanic = runProtected(left)
		wg.Wait()
	default:
		leftPanic = runProtected(left)
		rightPanic = runProtected(right)
	}
	if leftPanic != nil {
		panic(leftPanic)
	}
	if rightPanic != nil {
		panic(rightPanic)
	}
}

// rooted runs fn with the calling goroutine bound to a thread identifier,
// claiming a worker slot for the binding unless an enclosing task already
// holds one.
func (s *Scheduler) rooted(fn parcore.Thunk) {
	if _, ok := s.pool.Current(); ok {
		fn()
		return
	}
	s.sem <- struct{}{}
	_, detach := s.pool.Attach()
	defer func() {
		detach()
		<-s.sem
	}()
	fn()
}

func runProtected(fn parcore.Thunk) (p interface{}) {
	defer func() {
		p = internal.WrapPanic(recover())
	}()
	fn()
	return
}

var _ parcore.Scheduler = (*Scheduler)(nil)
