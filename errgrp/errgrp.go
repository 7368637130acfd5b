/*
Package errgrp provides a scheduler backend that delegates task execution
to golang.org/x/sync/errgroup, treating it as an external parallel
runtime. Forked halves and range leaves run through group.Go, and joining
is group.Wait.

Unlike the spawn backend, this adapter honors an explicit worker-count
override. The count bounds both the number of concurrently running tasks
and the thread identifiers they are issued: every live task holds one of
NumWorkers slots, and a task that cannot reserve a slot runs on the
calling goroutine instead of through the group. Grain batching is
preserved exactly: a leaf of up to grain iterations is one task.
*/
package errgrp

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/internal"
	"github.com/parcore-go/parcore/threadid"
)

// A Scheduler delegates fork-join execution to errgroup. Use New.
type Scheduler struct {
	pool  *threadid.Pool
	limit int

	// sem holds one slot per worker. Every live attachment to the pool
	// owns a slot, so identifiers never reach NumWorkers.
	sem chan struct{}
}

// An Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers caps the number of concurrently running tasks. The default
// is runtime.GOMAXPROCS(0). WithWorkers panics if n < 1.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n < 1 {
			panic("errgrp: worker count must be at least 1")
		}
		s.limit = n
	}
}

// WithPool sets the thread-identifier pool used to give group goroutines
// dense identifiers. The default is a pool private to the scheduler;
// sharing one pool between schedulers moves the bound on identifiers from
// each scheduler to the pool's combined users.
func WithPool(pool *threadid.Pool) Option {
	return func(s *Scheduler) { s.pool = pool }
}

// New returns an errgroup-backed Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{limit: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = threadid.NewPool()
	}
	s.sem = make(chan struct{}, s.limit)
	return s
}

// Pool returns the thread-identifier pool workers attach to.
func (s *Scheduler) Pool() *threadid.Pool { return s.pool }

// NumWorkers reports the configured concurrency limit.
func (s *Scheduler) NumWorkers() int { return s.limit }

// WorkerID reports the identifier bound to the calling goroutine for the
// duration of its task, or 0 outside one.
func (s *Scheduler) WorkerID() int {
	if id, ok := s.pool.Current(); ok {
		return id
	}
	return 0
}

// ForkJoin executes both thunks to completion, the right one through a
// group task when a worker slot is free, and returns only when both have
// terminated, re-raising the left-most recovered panic after both are
// done.
func (s *Scheduler) ForkJoin(left, right parcore.Thunk) {
	s.rooted(func() { s.forkJoin(left, right) })
}

func (s *Scheduler) forkJoin(left, right parcore.Thunk) {
	var leftPanic, rightPanic interface{}
	select {
	case s.sem <- struct{}{}:
		var g errgroup.Group
		g.Go(func() error {
			defer func() {
				rightPanic = internal.WrapPanic(recover())
				<-s.sem
			}()
			_, detach := s.pool.Attach()
			defer detach()
			right()
			return nil
		})
		leftPanic = runProtected(left)
		_ = g.Wait()
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

// ParallelFor divides [low, high) into leaves of at most the effective
// grain and runs each leaf as one task: through the group when a worker
// slot is free, on the calling goroutine otherwise. The left-most panic
// raised by a leaf is re-raised after every leaf has terminated.
func (s *Scheduler) ParallelFor(low, high, grain int, body parcore.RangeFunc) {
	leaf := internal.LeafSize(low, high, grain, s.limit)
	s.rooted(func() { s.parallelFor(low, high, leaf, body) })
}

func (s *Scheduler) parallelFor(low, high, leaf int, body parcore.RangeFunc) {
	if high-low <= leaf {
		for i := low; i < high; i++ {
			body(i)
		}
		return
	}

	nleaves := ((high - low - 1) / leaf) + 1
	panics := make([]interface{}, nleaves)
	var g errgroup.Group
	for k := 0; k < nleaves; k++ {
		k := k
		lo := low + k*leaf
		hi := lo + leaf
		if hi > high {
			hi = high
		}
		run := func() {
			defer func() {
				panics[k] = internal.WrapPanic(recover())
			}()
			for i := lo; i < hi; i++ {
				body(i)
			}
		}
		select {
		case s.sem <- struct{}{}:
			g.Go(func() error {
				defer func() { <-s.sem }()
				_, detach := s.pool.Attach()
				defer detach()
				run()
				return nil
			})
		default:
			run()
		}
	}
	_ = g.Wait()
	for _, p := range panics {
		if p != nil {
			panic(p)
		}
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
