//go:build parcore_spawn

package sched

import (
	"github.com/parcore-go/parcore"
	"github.com/parcore-go/parcore/spawn"
)

func newDefault() parcore.Scheduler {
	return spawn.New()
}
