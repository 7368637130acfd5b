//go:build parcore_errgrp && !parcore_spawn

package sched

import (
	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/errgrp"
)

func newDefault() parcore.Scheduler {
	return errgrp.New()
}
