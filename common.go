package parcore

type (
	// A Thunk is a function that neither receives nor returns any
	// parameters.
	Thunk func()

	// A RangeFunc is a function that receives an index i, with
	// low <= i < high for the range it was invoked over.
	RangeFunc func(i int)
)

// A Scheduler executes fork-join task graphs. Exactly one backend
// implementation is active as the process default, selected at build time by
// the sched package, but independent schedulers can also be constructed and
// used side by side.
//
// All backends guarantee that ForkJoin and ParallelFor return only once the
// full subtree of work they spawned has completed, and that a panic raised
// by a task body is re-raised exactly once at the root call, after the
// sibling subtree has completed its join barrier.
type Scheduler interface {
	// ForkJoin executes both thunks to completion, potentially
	// concurrently, and returns only once both have completed. The left
	// thunk always executes on the calling goroutine; the right thunk may
	// be executed by a different worker.
	ForkJoin(left, right Thunk)

	// ParallelFor invokes body(i) for every i in the half-open interval
	// [low, high), with low <= high. If grain is positive, sequential
	// runs of up to grain iterations are batched per leaf task; if grain
	// is zero, the backend chooses its own batching. The order in which
	// iterations execute is unspecified; iterations must be independent
	// or externally synchronized.
	//
	// ParallelFor panics if high < low, or if grain < 0.
	ParallelFor(low, high, grain int, body RangeFunc)

	// NumWorkers reports the configured worker count.
	NumWorkers() int

	// WorkerID reports the dense identifier of the calling worker, which
	// is always smaller than NumWorkers.
	WorkerID() int
}
