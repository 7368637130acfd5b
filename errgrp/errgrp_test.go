package errgrp_test

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/parcore-go/parcore/errgrp"
)

func TestForkJoinIndependentWrites(t *testing.T) {
	s := errgrp.New()

	var x, y int
	s.ForkJoin(
		func() { x = 1 },
		func() { y = 2 },
	)
	if x != 1 || y != 2 {
		t.Fatalf("got x=%d y=%d, want x=1 y=2", x, y)
	}
}

func TestParallelForIdentity(t *testing.T) {
	s := errgrp.New()

	for _, n := range []int{0, 1, 1000, 100000} {
		for _, grain := range []int{0, 1, 10, 1024} {
			slice := make([]int, n)
			s.ParallelFor(0, n, grain, func(i int) {
				slice[i] = i
			})
			for i := range slice {
				if slice[i] != i {
					t.Fatalf("n=%d grain=%d: slice[%d] = %d", n, grain, i, slice[i])
				}
			}
		}
	}
}

// TestLimitRespected checks that the worker-count option really bounds the
// number of concurrently running leaves.
func TestLimitRespected(t *testing.T) {
	const limit = 2
	s := errgrp.New(errgrp.WithWorkers(limit))

	if got := s.NumWorkers(); got != limit {
		t.Fatalf("NumWorkers() = %d, want %d", got, limit)
	}

	var running, peak int32
	s.ParallelFor(0, 200, 1, func(int) {
		cur := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		atomic.AddInt32(&running, -1)
	})

	if p := atomic.LoadInt32(&peak); p > limit {
		t.Fatalf("peak concurrency %d exceeds limit %d", p, limit)
	}
}

// TestWorkerIDBelowNumWorkers checks the identifier bound with several
// goroutines issuing root calls at once.
func TestWorkerIDBelowNumWorkers(t *testing.T) {
	s := errgrp.New(errgrp.WithWorkers(2))

	var bad int32
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ParallelFor(0, 5000, 1, func(int) {
				if id := s.WorkerID(); id < 0 || id >= s.NumWorkers() {
					atomic.StoreInt32(&bad, int32(id)+1)
				}
			})
		}()
	}
	wg.Wait()

	if bad != 0 {
		t.Fatalf("observed worker id %d with NumWorkers %d", bad-1, s.NumWorkers())
	}
}

func TestPanicLeftmostLeafWins(t *testing.T) {
	s := errgrp.New()

	defer func() {
		p := recover()
		if p == nil {
			t.Fatal("panic was dropped")
		}
		if !strings.Contains(p.(string), "leaf-0") {
			t.Fatalf("want the left-most panic to win, got: %v", p)
		}
	}()
	s.ParallelFor(0, 100, 10, func(i int) {
		if i%10 == 0 {
			panic("leaf-" + string(rune('0'+i/10)))
		}
	})
}

func TestInvalidWorkerCountPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("WithWorkers(0) did not panic")
		}
	}()
	errgrp.New(errgrp.WithWorkers(0))
}
