package app

import (
	"context"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/scheduler"
)

// schedulerModule puts the scheduler in the App lifecycle. Jobs are
// registered by the watch module; this module only stops them.
type schedulerModule struct {
	scheduler *scheduler.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "scheduler"}
}

func (m *schedulerModule) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}
