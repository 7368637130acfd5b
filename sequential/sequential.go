// Package sequential provides a scheduler backend with no parallelism at
// all: the left thunk runs before the right one, and range iterations run
// in ascending order, all on the calling goroutine. This is useful for
// testing and debugging.
//
// It is not recommended to use this backend for any other purpose; it
// exists so that algorithm code can be run deterministically under the
// same four-operation contract the parallel backends implement.
package sequential

import (
	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/internal"
)

// A Scheduler executes everything sequentially on the calling goroutine.
// The zero value is ready to use.
type Scheduler struct{}

// New returns a sequential Scheduler.
func New() *Scheduler { return &Scheduler{} }

// ForkJoin executes left, then right, on the calling goroutine.
func (*Scheduler) ForkJoin(left, right parcore.Thunk) {
	left()
	right()
}

// ParallelFor invokes body(i) for every i in [low, high) in ascending
// order on the calling goroutine. The range and grain are validated the
// same way the parallel backends validate them, so contract violations do
// not go unnoticed merely because the debug backend is selected.
func (*Scheduler) ParallelFor(low, high, grain int, body parcore.RangeFunc) {
	internal.CheckRange(low, high, grain)
	for i := low; i < high; i++ {
		body(i)
	}
}

// NumWorkers reports 1.
func (*Scheduler) NumWorkers() int { return 1 }

// WorkerID reports 0.
func (*Scheduler) WorkerID() int { return 0 }

var _ parcore.Scheduler = (*Scheduler)(nil)
