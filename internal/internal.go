// Package internal provides helpers shared by the scheduler backends.
package internal

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
)

// CheckRange panics unless low <= high and grain >= 0.
func CheckRange(low, high, grain int) {
	if high < low {
		panic(fmt.Sprintf("invalid range: %v:%v", low, high))
	}
	if grain < 0 {
		panic(fmt.Sprintf("invalid grain: %v", grain))
	}
}

// LeafSize determines the number of iterations batched into one sequential
// leaf when a backend bisects the range from low to high. If grain is
// positive it is used directly. If grain is 0, the range is divided up so
// that every worker ends up with roughly eight leaves, which absorbs
// moderate load imbalance without drowning small ranges in task-management
// overhead.
func LeafSize(low, high, grain, workers int) int {
	CheckRange(low, high, grain)
	if grain > 0 {
		return grain
	}
	if workers < 1 {
		workers = 1
	}
	size := high - low
	if size <= 1 {
		return 1
	}
	leaf := ((size - 1) / (8 * workers)) + 1
	return leaf
}

// Mid computes the split point when bisecting the range from low to high.
// The left side receives a slightly larger share (9/16) than the right:
// the left half is executed inline by the forking worker, so biasing it
// keeps more work out of the deques while the depth of the recursion stays
// logarithmic. The exact ratio is a tuning constant, not a contract; both
// sides are always non-empty for ranges of size >= 2.
func Mid(low, high int) int {
	mid := low + ((high-low)*9+15)/16
	if mid >= high {
		mid = high - 1
	}
	return mid
}

type runtimeError struct{ error }

func (runtimeError) RuntimeError() {}

// WrapPanic adds stack trace information to a recovered panic.
func WrapPanic(p interface{}) interface{} {
	if p != nil {
		s := fmt.Sprintf("%v\n%s\nrethrown at", p, debug.Stack())
		if _, isError := p.(error); isError {
			r := errors.New(s)
			if _, isRuntimeError := p.(runtime.Error); isRuntimeError {
				return runtimeError{r}
			}
			return r
		}
		return s
	}
	return nil
}
