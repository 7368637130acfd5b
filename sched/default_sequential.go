//go:build parcore_sequential && !parcore_spawn && !parcore_errgrp

package sched

import (
	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/sequential"
)

func newDefault() parcore.Scheduler {
	return sequential.New()
}
