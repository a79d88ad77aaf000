package engine

import (
	"context"

	"github.com/msettings/msettings/pkg/settingsync"
)

// ConfigSource is a persisted configuration that can report external edits.
type ConfigSource interface {
	Load() (settingsync.ScheduleConfig, error)
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// WatchConfig applies external edits of src to the engine until ctx is
// done. A file that fails to load is logged and ignored.
func (e *Engine) WatchConfig(ctx context.Context, src ConfigSource) error {
	events, err := src.Watch(ctx)
	if err != nil {
		return err
	}
	safeGo(e.log, nil, "config watch", nil, func() {
		for range events {
			if err := e.reload(src); err != nil {
				e.log.Warning("Ignoring config change: %v", err)
			}
		}
	})
	return nil
}

// reload loads src and applies it. Holding persistMu across both steps means
// an event raised by one of our own saves never reads a file older than the
// state it would replace.
func (e *Engine) reload(src ConfigSource) error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	cfg, err := src.Load()
	if err != nil {
		return err
	}
	return e.apply(cfg)
}
