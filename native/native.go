/*
Package native provides the default fork-join scheduler backend: a fixed
pool of workers cooperating through work stealing. Each worker owns a
Chase-Lev double-ended queue; ForkJoin pushes the right task onto the
calling worker's queue and runs the left task inline, and idle workers
steal from the top of a victim's queue. A goroutine that initiates a root
call from outside the pool temporarily registers as a transient worker and
participates in stealing itself while it waits, rather than sleeping.
External root calls are admitted one at a time, which keeps every worker
identifier below NumWorkers even when several goroutines use the scheduler
concurrently.

Workers identify themselves through a dense thread-identifier pool owned
by the scheduler, which also sizes any per-worker storage layered on top.
*/
package native

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/internal"
	"github.com/parcore-go/parcore/threadid"
)

// parkTimeout bounds how long an idle worker sleeps before rechecking the
// queues on its own; it rescues the rare wakeup lost between the parked
// flag and the channel receive.
const parkTimeout = time.Millisecond

// stealSpins is the number of failed steal sweeps an idle worker performs
// before parking.
const stealSpins = 64

// A task is the unit handed between workers: a thunk plus the state its
// joiner needs. A task is owned by the worker executing it; ownership of
// a pushed right half transfers to whichever worker steals it.
type task struct {
	fn       parcore.Thunk
	done     atomic.Bool
	panicked interface{} // written before done, read after done
}

// run executes the task, capturing a panic for the joiner to re-raise.
// The done flag is set last; its release ordering publishes panicked.
func (t *task) run() {
	defer func() {
		t.panicked = internal.WrapPanic(recover())
		t.done.Store(true)
	}()
	t.fn()
}

type worker struct {
	id    int
	sched *Scheduler
	deque deque
	rng   uint64

	// Fixed workers park on wake; transient root workers never park.
	wake   chan struct{}
	parked atomic.Bool
}

// A Scheduler is a work-stealing fork-join scheduler. It must be created
// with New and released with Close.
type Scheduler struct {
	pool    *threadid.Pool
	workers int
	log     zerolog.Logger

	fixed   []*worker
	byID    [threadid.Capacity]atomic.Pointer[worker]
	victims atomic.Pointer[[]*worker]
	vmu     sync.Mutex

	// rootSem admits one transient root at a time, so the pool never
	// holds more than workers live identifiers and every issued id is
	// below the worker count.
	rootSem chan struct{}

	nparked atomic.Int32
	closed  atomic.Bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// An Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the worker count, which includes the thread initiating
// a root call. The default is runtime.GOMAXPROCS(0). WithWorkers panics
// if n < 1.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n < 1 {
			panic("native: worker count must be at least 1")
		}
		s.workers = n
	}
}

// WithLogger sets the logger used for lifecycle events. The default
// discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// New returns a running Scheduler. The worker count is fixed for the
// lifetime of the scheduler; one of the workers is the goroutine that
// initiates each root call, so New starts count-1 background workers.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		pool:    threadid.NewPool(),
		workers: runtime.GOMAXPROCS(0),
		log:     zerolog.Nop(),
		closeCh: make(chan struct{}),
		rootSem: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := make([]*worker, 0, s.workers)
	s.victims.Store(&empty)

	s.fixed = make([]*worker, s.workers-1)
	for i := range s.fixed {
		w := &worker{
			sched: s,
			rng:   uint64(i)*0x9e3779b97f4a7c15 + 1,
			wake:  make(chan struct{}, 1),
		}
		w.deque.init()
		s.fixed[i] = w
		s.wg.Add(1)
		go w.loop()
	}
	s.log.Debug().Int("workers", s.workers).Msg("native scheduler started")
	return s
}

// Pool returns the scheduler's thread-identifier pool. Per-worker storage
// used from task bodies should be built over this pool so that its slots
// line up with WorkerID.
func (s *Scheduler) Pool() *threadid.Pool { return s.pool }

// NumWorkers reports the configured worker count.
func (s *Scheduler) NumWorkers() int { return s.workers }

// WorkerID reports the dense identifier of the calling worker. Outside a
// root call it reports 0.
func (s *Scheduler) WorkerID() int {
	if w := s.currentWorker(); w != nil {
		return w.id
	}
	return 0
}

// Close stops the background workers and waits for them to exit. No
// scheduler operation may be in flight or started afterwards.
func (s *Scheduler) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.closeCh)
	s.wg.Wait()
	s.log.Debug().Msg("native scheduler closed")
}

// ForkJoin executes both thunks to completion and returns once both have
// finished. The left thunk runs inline on the calling worker; the right
// is pushed onto the calling worker's deque, from which it is either
// popped back at the join or stolen by an idle worker. While the right
// half is in a thief's hands the joiner steals other work itself instead
// of blocking.
func (s *Scheduler) ForkJoin(left, right parcore.Thunk) {
	w := s.currentWorker()
	if w == nil {
		s.runRoot(func() { s.ForkJoin(left, right) })
		return
	}

	t := task{fn: right}
	w.deque.push(&t)
	s.wakeOne()

	leftPanic := runProtected(left)

	var rightPanic interface{}
	if popped := w.deque.pop(); popped != nil {
		// Nothing stole the right half; run it inline. The deque is
		// join-balanced, so the bottom task is necessarily ours.
		rightPanic = runProtected(popped.fn)
	} else {
		// Stolen. Help with other work until the thief finishes it.
		for !t.done.Load() {
			if st := s.trySteal(w); st != nil {
				st.run()
				continue
			}
			runtime.Gosched()
		}
		rightPanic = t.panicked
	}

	if leftPanic != nil {
		panic(leftPanic)
	}
	if rightPanic != nil {
		panic(rightPanic)
	}
}

// ParallelFor invokes body(i) for every i in [low, high), recursively
// bisecting the range into ForkJoin halves until a subrange fits in one
// leaf. The split is biased toward the inline left side; see internal.Mid.
func (s *Scheduler) ParallelFor(low, high, grain int, body parcore.RangeFunc) {
	leaf := internal.LeafSize(low, high, grain, s.workers)
	if high-low <= leaf {
		for i := low; i < high; i++ {
			body(i)
		}
		return
	}
	var recur func(lo, hi int)
	recur = func(lo, hi int) {
		if hi-lo <= leaf {
			for i := lo; i < hi; i++ {
				body(i)
			}
			return
		}
		mid := internal.Mid(lo, hi)
		s.ForkJoin(
			func() { recur(lo, mid) },
			func() { recur(mid, hi) },
		)
	}
	recur(low, high)
}

func runProtected(fn parcore.Thunk) (p interface{}) {
	defer func() {
		p = internal.WrapPanic(recover())
	}()
	fn()
	return
}

// currentWorker maps the calling goroutine to its worker through the
// thread-identifier pool, or returns nil for goroutines outside the pool.
func (s *Scheduler) currentWorker() *worker {
	id, ok := s.pool.Current()
	if !ok {
		return nil
	}
	return s.byID[id].Load()
}

// runRoot registers the calling goroutine as a transient worker for the
// duration of one root call. Its deque is stealable like any other, and
// the nested call sees it through currentWorker. External roots are
// admitted one at a time; together with the workers-1 fixed workers that
// keeps every identifier the pool issues below the worker count.
func (s *Scheduler) runRoot(fn func()) {
	s.rootSem <- struct{}{}
	defer func() { <-s.rootSem }()

	id, detach := s.pool.Attach()
	defer detach()

	w := &worker{id: id, sched: s, rng: uint64(id)*0x9e3779b97f4a7c15 + 1}
	w.deque.init()
	s.byID[id].Store(w)
	s.addVictim(w)
	defer func() {
		s.removeVictim(w)
		s.byID[id].Store(nil)
	}()

	fn()
}

func (w *worker) loop() {
	s := w.sched
	defer s.wg.Done()

	id, detach := s.pool.Attach()
	defer detach()
	w.id = id
	s.byID[id].Store(w)
	s.addVictim(w)
	defer func() {
		s.removeVictim(w)
		s.byID[id].Store(nil)
	}()
	s.log.Debug().Int("worker", id).Msg("worker started")

	spins := 0
	for {
		if t := w.deque.pop(); t != nil {
			t.run()
			spins = 0
			continue
		}
		if t := s.trySteal(w); t != nil {
			t.run()
			spins = 0
			continue
		}
		if s.closed.Load() {
			s.log.Debug().Int("worker", id).Msg("worker stopped")
			return
		}
		if spins < stealSpins {
			spins++
			runtime.Gosched()
			continue
		}
		spins = 0
		w.park()
	}
}

// park blocks the worker with a low-power wait until a push signals it,
// the scheduler closes, or the timeout forces a recheck.
func (w *worker) park() {
	s := w.sched
	w.parked.Store(true)
	s.nparked.Add(1)
	timer := time.NewTimer(parkTimeout)
	select {
	case <-w.wake:
	case <-s.closeCh:
	case <-timer.C:
	}
	timer.Stop()
	s.nparked.Add(-1)
	w.parked.Store(false)
}

// wakeOne unparks one worker, if any is parked. Lost races are recovered
// by the park timeout.
func (s *Scheduler) wakeOne() {
	if s.nparked.Load() == 0 {
		return
	}
	for _, w := range s.fixed {
		if w.parked.CompareAndSwap(true, false) {
			select {
			case w.wake <- struct{}{}:
			default:
			}
			return
		}
	}
}

// trySteal sweeps the victim set once from a random start, returning the
// first task stolen, or nil if nothing was stealable.
func (s *Scheduler) trySteal(self *worker) *task {
	victims := *s.victims.Load()
	n := len(victims)
	if n == 0 {
		return nil
	}
	start := int(self.nextRand() % uint64(n))
	for i := 0; i < n; i++ {
		v := victims[(start+i)%n]
		if v == self {
			continue
		}
		if t := v.deque.steal(); t != nil {
			return t
		}
	}
	return nil
}

// nextRand is a xorshift step for victim selection; it never needs to be
// good, only cheap and unsynchronized.
func (w *worker) nextRand() uint64 {
	x := w.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	w.rng = x
	return x
}

func (s *Scheduler) addVictim(w *worker) {
	s.vmu.Lock()
	defer s.vmu.Unlock()
	old := *s.victims.Load()
	next := make([]*worker, len(old)+1)
	copy(next, old)
	next[len(old)] = w
	s.victims.Store(&next)
}

func (s *Scheduler) removeVictim(w *worker) {
	s.vmu.Lock()
	defer s.vmu.Unlock()
	old := *s.victims.Load()
	next := make([]*worker, 0, len(old))
	for _, v := range old {
		if v != w {
			next = append(next, v)
		}
	}
	s.victims.Store(&next)
}

var _ parcore.Scheduler = (*Scheduler)(nil)
