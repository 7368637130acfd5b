package threadid

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireDistinct(t *testing.T) {
	const n = 64
	pool := NewPool()

	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = pool.Acquire()
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for _, id := range ids {
		require.GreaterOrEqual(t, id, 0)
		require.Less(t, id, Capacity)
		require.False(t, seen[id], "identifier %d issued twice", id)
		seen[id] = true
	}
	require.GreaterOrEqual(t, pool.HighWaterMark(), n)
}

func TestReuseAfterRelease(t *testing.T) {
	pool := NewPool()

	a := pool.Acquire()
	b := pool.Acquire()
	require.NotEqual(t, a, b)

	high := pool.HighWaterMark()
	pool.Release(a)

	c := pool.Acquire()
	require.Equal(t, a, c, "freed identifier should be reused by the linear scan")
	require.Equal(t, high, pool.HighWaterMark(), "reuse must not move the high-water mark")
}

func TestHighWaterMarkMonotonic(t *testing.T) {
	pool := NewPool()

	prev := 0
	for i := 0; i < 16; i++ {
		pool.Acquire()
		hwm := pool.HighWaterMark()
		require.GreaterOrEqual(t, hwm, prev)
		prev = hwm
	}
	require.Equal(t, 16, prev)
}

func TestAttachCurrent(t *testing.T) {
	pool := NewPool()

	_, ok := pool.Current()
	require.False(t, ok, "unattached goroutine must have no identifier")

	id, detach := pool.Attach()
	cur, ok := pool.Current()
	require.True(t, ok)
	require.Equal(t, id, cur)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := pool.Current()
		require.False(t, ok, "binding must not leak to other goroutines")
	}()
	<-done

	detach()
	_, ok = pool.Current()
	require.False(t, ok)

	next := pool.Acquire()
	require.Equal(t, id, next, "detach must release the identifier")
}

func TestReleaseMisusePanics(t *testing.T) {
	pool := NewPool()
	id := pool.Acquire()
	pool.Release(id)

	require.Panics(t, func() { pool.Release(id) })
	require.Panics(t, func() { pool.Release(-1) })
	require.Panics(t, func() { pool.Release(Capacity) })
}

func TestRacingDoubleRelease(t *testing.T) {
	pool := NewPool()
	id := pool.Acquire()

	var panics int32
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if recover() != nil {
					atomic.AddInt32(&panics, 1)
				}
			}()
			pool.Release(id)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, panics, "exactly one of two racing releases must panic")
	require.Equal(t, id, pool.Acquire(), "the slot must come free exactly once")
}

func TestConcurrentChurn(t *testing.T) {
	pool := NewPool()

	var wg sync.WaitGroup
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id, detach := pool.Attach()
				cur, ok := pool.Current()
				if !ok || cur != id {
					t.Errorf("binding mismatch: got %v,%v want %v", cur, ok, id)
				}
				detach()
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, pool.HighWaterMark(), 32, "churning 32 goroutines must not grow the pool past 32")
}
