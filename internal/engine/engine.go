// Package engine composes the schedule state, the scheduler, the fetcher
// and the replacer into the operations the UI and the CLI call.
//
// The engine is constructed explicitly and handed to its collaborators;
// there is no package-level state. Fetch and replace only ever run on
// background goroutines, and every background change is announced on
// Changes so a front end can repaint.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/msettings/msettings/internal/scheduler"
	"github.com/msettings/msettings/pkg/logger"
	"github.com/msettings/msettings/pkg/settingsync"
)

var (
	// ErrInvalidInput is returned by Start when the URL or interval is unusable.
	ErrInvalidInput = errors.New("enter a valid URL and interval")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")
)

// Fetcher downloads the settings document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Replacer writes the settings document over the target.
type Replacer interface {
	Replace(target string, data []byte) error
}

// ConfigSaver persists accepted configuration changes.
type ConfigSaver interface {
	Save(cfg settingsync.ScheduleConfig) error
}

// Options configures an Engine.
type Options struct {
	// Target is the settings file kept in sync. Required.
	Target string
	// Fetcher defaults to a settingsync.Fetcher with default options.
	Fetcher Fetcher
	// Replacer defaults to a settingsync.Replacer on the OS filesystem.
	Replacer Replacer
	// Store, when set, receives every accepted configuration change.
	Store ConfigSaver
	// Logger defaults to a NopLogger.
	Logger logger.Logger
	// Scheduler tunes the scheduler loop timing.
	Scheduler scheduler.Config
	// Now defaults to time.Now.
	Now func() time.Time
}

// View is a consistent copy of everything a front end displays.
type View struct {
	Config         settingsync.ScheduleConfig
	History        []settingsync.UpdateRecord
	Status         Status
	Running        bool
	Updating       int
	SchedulerState scheduler.State
	NextFire       time.Time
}

// Engine is the scheduled update engine.
type Engine struct {
	state    *settingsync.State
	sched    *scheduler.Scheduler
	fetcher  Fetcher
	replacer Replacer
	store    ConfigSaver
	target   string
	log      logger.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	status   Status
	updating int
	closed   bool

	// persistMu orders config edits and their save against reloads.
	persistMu sync.Mutex
}

// New creates an Engine holding cfg. The scheduler is not armed.
func New(cfg settingsync.ScheduleConfig, opts Options) (*Engine, error) {
	if opts.Target == "" {
		return nil, errors.New("engine: target path is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fetcher == nil {
		f, err := settingsync.NewFetcher(nil)
		if err != nil {
			return nil, err
		}
		opts.Fetcher = f
	}
	if opts.Replacer == nil {
		opts.Replacer = settingsync.NewReplacer(nil, opts.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		state:    settingsync.NewState(cfg),
		fetcher:  opts.Fetcher,
		replacer: opts.Replacer,
		store:    opts.Store,
		target:   opts.Target,
		log:      opts.Logger,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		status:   StatusNotStarted,
	}

	schedCfg := opts.Scheduler
	schedCfg.OnChange = e.schedulerChanged
	if schedCfg.Logger == nil {
		schedCfg.Logger = opts.Logger
	}
	if schedCfg.Now == nil {
		schedCfg.Now = opts.Now
	}
	e.sched = scheduler.New(e.state, e.fireScheduled, schedCfg)
	return e, nil
}

// Target returns the settings file path.
func (e *Engine) Target() string {
	return e.target
}

// Start is the "start auto update" action. It validates the URL and the
// interval, dispatches an immediate update and, when the schedule is
// enabled, arms the scheduler unless it is already armed. When the schedule
// is disabled any running scheduler is stopped.
func (e *Engine) Start() error {
	if e.isClosed() {
		return ErrClosed
	}
	cfg := e.state.Snapshot()
	if !settingsync.IsDispatchableURL(cfg.URL) || settingsync.ValidateInterval(cfg.IntervalHours) != nil {
		e.setStatus(StatusInvalidInput)
		return ErrInvalidInput
	}

	if cfg.Enabled {
		e.setStatus(StatusUpdatingArmed)
	} else {
		e.setStatus(StatusManualUpdating)
	}
	e.dispatch(cfg.URL)

	if !cfg.Enabled {
		e.setStatus(StatusManualFinished)
		if e.sched.State() == scheduler.Running {
			e.Stop()
		}
		return nil
	}

	if err := e.sched.Arm(e.ctx); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyArmed) {
			e.setStatus(StatusSchedulerArmed)
			return nil
		}
		return err
	}
	e.setStatus(StatusSchedulerArmed)
	return nil
}

// Stop stops the scheduler. An update already in progress completes.
func (e *Engine) Stop() {
	e.sched.Stop()
	e.setStatus(StatusStopped)
}

// UpdateNow dispatches a single manual update without touching the scheduler.
func (e *Engine) UpdateNow() error {
	if e.isClosed() {
		return ErrClosed
	}
	url := e.state.URL()
	if !settingsync.IsDispatchableURL(url) {
		e.setStatus(StatusInvalidURL)
		return &settingsync.FetchError{Kind: settingsync.InvalidURL, URL: url, Cause: settingsync.ErrInvalidURL}
	}
	if e.sched.State() == scheduler.Running {
		e.setStatus(StatusUpdatingArmed)
	} else {
		e.setStatus(StatusManualUpdating)
	}
	e.dispatch(url)
	return nil
}

// SetURL stores url. Invalid URLs are accepted and simply never dispatched.
func (e *Engine) SetURL(url string) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if e.state.SetURL(url) {
		e.persist()
	}
}

// SetInterval stores the interval in hours after validating it.
func (e *Engine) SetInterval(hours int) error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	changed, err := e.state.SetIntervalHours(hours)
	if err != nil {
		return err
	}
	if changed {
		e.persist()
	}
	return nil
}

// SetEnabled stores the schedule enablement. Disabling makes an armed loop
// exit on its next increment; enabling does not arm it.
func (e *Engine) SetEnabled(enabled bool) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if e.state.SetEnabled(enabled) {
		e.persist()
	}
}

// Apply replaces the configuration without persisting it. It is used for
// changes that came from the config file itself.
func (e *Engine) Apply(cfg settingsync.ScheduleConfig) error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	return e.apply(cfg)
}

func (e *Engine) apply(cfg settingsync.ScheduleConfig) error {
	if e.state.Snapshot() == cfg {
		return nil
	}
	if err := e.state.Replace(cfg); err != nil {
		return err
	}
	e.log.Info("Applied external config change: url=%s interval=%dh enabled=%v", cfg.URL, cfg.IntervalHours, cfg.Enabled)
	return nil
}

// Config returns the current configuration.
func (e *Engine) Config() settingsync.ScheduleConfig {
	return e.state.Snapshot()
}

// History returns the update history in completion order.
func (e *Engine) History() []settingsync.UpdateRecord {
	return e.state.History()
}

// Status returns the status line.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Snapshot returns a View of the engine.
func (e *Engine) Snapshot() View {
	e.mu.Lock()
	status, updating := e.status, e.updating
	e.mu.Unlock()

	st := e.sched.State()
	return View{
		Config:         e.state.Snapshot(),
		History:        e.state.History(),
		Status:         status,
		Running:        st == scheduler.Running || updating > 0,
		Updating:       updating,
		SchedulerState: st,
		NextFire:       e.sched.NextFire(),
	}
}

// SchedulerState returns the scheduler lifecycle state.
func (e *Engine) SchedulerState() scheduler.State {
	return e.sched.State()
}

// NextFire returns the advisory next scheduled update time.
func (e *Engine) NextFire() time.Time {
	return e.sched.NextFire()
}

// Changes delivers a coalesced signal after every state change.
func (e *Engine) Changes() <-chan struct{} {
	return e.state.Changes()
}

// Wait blocks until in-flight updates and the scheduler loop have finished,
// or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.sched.Wait(ctx)
}

// Close stops the scheduler, waits for in-flight updates until ctx is done
// and then cancels whatever is still running.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.sched.Stop()
	err := e.Wait(ctx)
	e.cancel()
	return err
}

// dispatch runs a manual update on a background goroutine.
func (e *Engine) dispatch(url string) {
	e.mu.Lock()
	e.updating++
	e.mu.Unlock()

	safeGo(e.log, &e.wg, "manual update", func(r interface{}) {
		e.state.AppendHistory(settingsync.UpdateRecord{
			Time:    e.now(),
			Trigger: settingsync.Manual,
			Err:     "internal error",
		})
	}, func() {
		defer e.finishManual()
		e.update(e.ctx, url, settingsync.Manual)
	})
}

// schedulerChanged repaints after a scheduler transition. A loop that went
// idle on its own, because the schedule was disabled, reads as stopped.
func (e *Engine) schedulerChanged() {
	if e.sched.State() == scheduler.Stopped {
		e.mu.Lock()
		if e.status == StatusSchedulerArmed || (e.status == StatusUpdatingArmed && e.updating == 0) {
			e.status = StatusStopped
		}
		e.mu.Unlock()
	}
	e.state.Notify()
}

func (e *Engine) finishManual() {
	e.mu.Lock()
	e.updating--
	if e.updating == 0 && e.status == StatusManualUpdating {
		e.status = StatusManualFinished
	}
	e.mu.Unlock()
	e.state.Notify()
}

// fireScheduled is the scheduler callback.
func (e *Engine) fireScheduled(ctx context.Context, url string) {
	e.update(ctx, url, settingsync.Scheduled)
}

// update fetches url, replaces the target and appends the outcome to the
// history. Errors never escape: they become failure records.
func (e *Engine) update(ctx context.Context, url string, trigger settingsync.Trigger) {
	err := e.fetchAndReplace(ctx, url)
	rec := settingsync.NewUpdateRecord(e.now(), trigger, err)
	if err != nil {
		e.log.Error("%s update from %s failed: %v", trigger, url, err)
	} else {
		e.log.Info("%s update from %s succeeded", trigger, url)
	}
	e.state.AppendHistory(rec)
}

func (e *Engine) fetchAndReplace(ctx context.Context, url string) error {
	data, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}
	return e.replacer.Replace(e.target, data)
}

// persist saves the current configuration. Errors are logged only.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.state.Snapshot()); err != nil {
		e.log.Error("Failed to save config: %v", err)
	}
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	changed := e.status != s
	e.status = s
	e.mu.Unlock()
	if changed {
		e.state.Notify()
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
