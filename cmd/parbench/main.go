// Command parbench runs a few representative workloads against every
// scheduler backend and reports wall-clock timings. It is a smoke test and
// demonstration, not a rigorous benchmark; use the package benchmarks for
// real measurements.
package main

import (
	"flag"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs" // respect container CPU quotas

	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/errgrp"
	"github.com/parcore-go/parcore/native"
	"github.com/parcore-go/parcore/sequential"
	"github.com/parcore-go/parcore/spawn"
)

func main() {
	size := flag.Int("n", 4_000_000, "problem size")
	grain := flag.Int("grain", 0, "iterations per leaf task (0 = automatic)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}
	log.Info().
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Int("n", *size).
		Int("grain", *grain).
		Msg("parbench starting")

	ws := native.New(native.WithLogger(log))
	defer ws.Close()

	backends := []struct {
		name  string
		sched parcore.Scheduler
	}{
		{"native", ws},
		{"spawn", spawn.New()},
		{"errgrp", errgrp.New()},
		{"sequential", sequential.New()},
	}

	input := make([]float64, *size)
	for i := range input {
		input[i] = float64(i%1000) / 997.0
	}
	output := make([]float64, *size)

	for _, b := range backends {
		elapsed := timeIt(func() {
			b.sched.ParallelFor(0, *size, *grain, func(i int) {
				output[i] = math.Sqrt(input[i])*math.Sqrt(input[i]) + 1
			})
		})
		log.Info().
			Str("backend", b.name).
			Int("workers", b.sched.NumWorkers()).
			Dur("map", elapsed).
			Msg("pointwise map")

		elapsed = timeIt(func() {
			fib(b.sched, 28)
		})
		log.Info().
			Str("backend", b.name).
			Dur("fib", elapsed).
			Msg("fork-join recursion")
	}
}

func timeIt(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}

// fib is the classic fork-join stress: tiny tasks, deep recursion.
func fib(s parcore.Scheduler, n int) int {
	if n < 16 {
		return seqFib(n)
	}
	var a, b int
	s.ForkJoin(
		func() { a = fib(s, n-1) },
		func() { b = fib(s, n-2) },
	)
	return a + b
}

func seqFib(n int) int {
	if n < 2 {
		return n
	}
	return seqFib(n-1) + seqFib(n-2)
}
