//go:build !parcore_spawn && !parcore_errgrp && !parcore_sequential

package sched

import (
	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/native"
)

func newDefault() parcore.Scheduler {
	return native.New()
}
