package cmd

import (
	"context"
	"time"

	"github.com/msettings/msettings/internal/engine"
	"github.com/msettings/msettings/internal/scheduler"
	"github.com/msettings/msettings/internal/ui"
	"github.com/msettings/msettings/pkg/logger"
	"github.com/msettings/msettings/pkg/settingsync"
)

// headlessPoll is swapped in tests.
var headlessPoll = DEF_HEADLESS_POLL

// headlessEngine is the part of the engine a headless run drives.
type headlessEngine interface {
	Start() error
	Snapshot() engine.View
	Changes() <-chan struct{}
}

// runHeadless arms the scheduler whenever the schedule is enabled and the
// scheduler is idle, including after config edits, and logs activation
// requests until ctx is done.
func runHeadless(ctx context.Context, eng headlessEngine, act ui.Activator, wake <-chan struct{}, l logger.Logger) error {
	if !eng.Snapshot().Config.Enabled {
		l.Info("Scheduler disabled; waiting for a config change")
	}
	// failed is the last config Start refused, so it is not retried until
	// the config changes.
	var failed *settingsync.ScheduleConfig
	arm := func() {
		v := eng.Snapshot()
		if !v.Config.Enabled || v.SchedulerState != scheduler.Stopped {
			return
		}
		if failed != nil && *failed == v.Config {
			return
		}
		if err := eng.Start(); err != nil {
			l.Error("Failed to start auto update: %v", err)
			failed = &v.Config
			return
		}
		failed = nil
		l.Info("Auto update started: %s every %d hour(s)", v.Config.URL, v.Config.IntervalHours)
	}
	arm()

	ticker := time.NewTicker(headlessPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Info("Shutdown requested")
			return nil
		case <-eng.Changes():
			arm()
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
			}
		}
		if act != nil && act.Consume() {
			l.Info("Activation requested by another launch; running headless")
		}
	}
}
