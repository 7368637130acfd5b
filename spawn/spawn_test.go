package spawn_test

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/parcore-go/parcore/spawn"
	"github.com/parcore-go/parcore/threadid"
)

func TestForkJoinIndependentWrites(t *testing.T) {
	s := spawn.New()

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
	s := spawn.New()

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

// TestParallelForFineGrain runs a large range at grain 1 with a body that
// does real work. The fork fan-out must stay bounded: the identifier pool
// high-water mark may never exceed the worker count.
func TestParallelForFineGrain(t *testing.T) {
	s := spawn.New()

	const n = 100000
	counts := make([]int32, n)
	var sum int64
	s.ParallelFor(0, n, 1, func(i int) {
		atomic.AddInt32(&counts[i], 1)
		atomic.AddInt64(&sum, int64(i%7))
	})

	for i, c := range counts {
		if c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}
	if hwm := s.Pool().HighWaterMark(); hwm > s.NumWorkers() {
		t.Fatalf("high-water mark %d exceeds worker count %d", hwm, s.NumWorkers())
	}
}

// TestWorkerIDBelowNumWorkers checks the identifier bound with several
// goroutines issuing root calls at once.
func TestWorkerIDBelowNumWorkers(t *testing.T) {
	s := spawn.New()

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

func TestPanicLeftmostWins(t *testing.T) {
	s := spawn.New()

	defer func() {
		p := recover()
		if p == nil {
			t.Fatal("panic was dropped")
		}
		if !strings.Contains(p.(string), "left") {
			t.Fatalf("want the left panic to win, got: %v", p)
		}
	}()
	s.ForkJoin(
		func() { panic("left") },
		func() { panic("right") },
	)
}

func TestSiblingCompletesBeforePanic(t *testing.T) {
	s := spawn.New()

	var rightDone int32
	defer func() {
		if recover() == nil {
			t.Fatal("panic was dropped")
		}
		if atomic.LoadInt32(&rightDone) != 1 {
			t.Fatal("join barrier did not wait for the sibling")
		}
	}()
	s.ForkJoin(
		func() { panic("left") },
		func() { atomic.StoreInt32(&rightDone, 1) },
	)
}

func TestWorkerCountOverrideRejected(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("WithWorkers override did not panic")
		}
	}()
	spawn.New(spawn.WithWorkers(runtime.GOMAXPROCS(0) + 1))
}

func TestNumWorkers(t *testing.T) {
	s := spawn.New()
	if got, want := s.NumWorkers(), runtime.GOMAXPROCS(0); got != want {
		t.Fatalf("NumWorkers() = %d, want %d", got, want)
	}
}

func TestWorkerIDBoundDuringTask(t *testing.T) {
	pool := threadid.NewPool()
	s := spawn.New(spawn.WithPool(pool))

	var sawBinding int32
	s.ForkJoin(
		func() {},
		func() {
			if _, ok := pool.Current(); ok {
				atomic.StoreInt32(&sawBinding, 1)
			}
		},
	)
	if sawBinding != 1 {
		t.Fatal("spawned task was not bound to a thread identifier")
	}
	if hwm := pool.HighWaterMark(); hwm < 1 {
		t.Fatalf("high-water mark = %d, want >= 1", hwm)
	}
}
