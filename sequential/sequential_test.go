package sequential_test

import (
	"testing"

	"github.com/parcore-go/parcore/sequential"
)

func TestForkJoinOrder(t *testing.T) {
	s := sequential.New()

	var order []string
	s.ForkJoin(
		func() { order = append(order, "left") },
		func() { order = append(order, "right") },
	)
	if len(order) != 2 || order[0] != "left" || order[1] != "right" {
		t.Fatalf("got order %v, want [left right]", order)
	}
}

func TestParallelForAscending(t *testing.T) {
	s := sequential.New()

	var visited []int
	s.ParallelFor(3, 10, 2, func(i int) {
		visited = append(visited, i)
	})
	if len(visited) != 7 {
		t.Fatalf("visited %d indices, want 7", len(visited))
	}
	for k, i := range visited {
		if i != 3+k {
			t.Fatalf("visited[%d] = %d, want %d", k, i, 3+k)
		}
	}
}

func TestEmptyRange(t *testing.T) {
	s := sequential.New()
	s.ParallelFor(5, 5, 0, func(int) {
		t.Error("body invoked for an empty range")
	})
}

func TestInvalidRangePanics(t *testing.T) {
	s := sequential.New()
	defer func() {
		if recover() == nil {
			t.Error("invalid range did not panic")
		}
	}()
	s.ParallelFor(1, 0, 0, func(int) {})
}

func TestIdentity(t *testing.T) {
	s := sequential.New()

	if s.NumWorkers() != 1 {
		t.Fatalf("NumWorkers() = %d, want 1", s.NumWorkers())
	}
	if s.WorkerID() != 0 {
		t.Fatalf("WorkerID() = %d, want 0", s.WorkerID())
	}
}
