/*
Package sched holds the process-wide default scheduler. Exactly one
backend is linked as the default, selected at build time: the native
work-stealing backend unless one of the build tags parcore_spawn,
parcore_errgrp, or parcore_sequential chooses an adapter or the
sequential debug backend instead. The rest of a program depends only on
the scheduler contract, never on a specific backend's symbols.

The default is created lazily on first use and lives until process exit;
there is no teardown and no reset. Programs that want explicit ownership
of a scheduler construct one directly from its backend package and ignore
this one.
*/
package sched

import (
	"sync"

	"github.com/parcore-go/parcore"
)

var (
	defaultOnce  sync.Once
	defaultSched parcore.Scheduler
)

// Default returns the process-wide scheduler, creating it on first use.
func Default() parcore.Scheduler {
	defaultOnce.Do(func() {
		defaultSched = newDefault()
	})
	return defaultSched
}

// ForkJoin executes both thunks on the default scheduler. See the
// parcore.Scheduler contract.
func ForkJoin(left, right parcore.Thunk) {
	Default().ForkJoin(left, right)
}

// ParallelFor invokes body over [low, high) on the default scheduler.
// See the parcore.Scheduler contract.
func ParallelFor(low, high, grain int, body parcore.RangeFunc) {
	Default().ParallelFor(low, high, grain, body)
}

// NumWorkers reports the default scheduler's worker count.
func NumWorkers() int {
	return Default().NumWorkers()
}

// WorkerID reports the calling worker's identifier under the default
// scheduler.
func WorkerID() int {
	return Default().WorkerID()
}
