// Package parcore provides the core primitives of a parallel-computing
// runtime: a pluggable fork-join task scheduler together with the small set
// of concurrency building blocks that higher-level parallel algorithms
// (sorting, reduction, scanning, hashing, sequence containers) are built on
// top of. While Go is primarily designed for concurrent programming, it is
// also usable to some extent for parallel programming, and this library
// concentrates the hard engineering of that in one place.
//
// The root package defines the scheduler contract: every backend implements
// ForkJoin (a parallel two-way split), ParallelFor (a parallel index-range
// iteration), NumWorkers, and WorkerID. Algorithm code depends only on this
// contract, never on a specific backend.
//
// Parcore provides the following subpackages:
//
// parcore/native provides the default scheduler backend, a work-stealing
// worker pool in which each worker owns a Chase-Lev double-ended queue.
//
// parcore/spawn provides an adapter backend that delegates task execution to
// the Go runtime scheduler, spawning a goroutine per forked task.
//
// parcore/errgrp provides an adapter backend that delegates to
// golang.org/x/sync/errgroup.
//
// parcore/sequential provides a sequential backend that executes everything
// on the calling goroutine, for testing and debugging purposes.
//
// parcore/sched selects exactly one of the above as the process-wide default
// at build time, and exposes package-level forwarding functions.
//
// parcore/threadid provides a dense, reusable thread-identifier pool.
//
// parcore/hazard provides a lock-free LIFO stack whose memory reclamation is
// protected by hazard pointers.
//
// parcore/bigatomic provides an atomic cell for payloads wider than the
// machine's native atomic width, using a seqlock discipline.
//
// parcore/perworker provides per-worker slot storage with one
// lazily-constructed value per thread identifier.
package parcore
