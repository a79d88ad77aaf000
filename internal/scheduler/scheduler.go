package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/msettings/msettings/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the recurring update loop for a Source.
type Scheduler struct {
	src      Source
	fire     FireFunc
	tick     time.Duration
	hourUnit time.Duration
	now      func() time.Time
	onChange func()
	log      logger.Logger

	mu       sync.Mutex
	phase    Phase
	gen      uint64
	nextFire time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates an idle Scheduler. Call Arm to start the loop.
func New(src Source, fire FireFunc, cfg Config) *Scheduler {
	s := &Scheduler{
		src:      src,
		fire:     fire,
		tick:     cfg.Tick,
		hourUnit: cfg.HourUnit,
		now:      cfg.Now,
		onChange: cfg.OnChange,
		log:      cfg.Logger,
	}
	if s.tick <= 0 {
		s.tick = DefaultTick
	}
	if s.hourUnit <= 0 {
		s.hourUnit = DefaultHourUnit
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.onChange == nil {
		s.onChange = func() {}
	}
	if s.log == nil {
		s.log = logger.NewNopLogger()
	}
	return s
}

// Arm starts the loop. It returns ErrAlreadyArmed, and changes nothing, when
// a loop is already armed or firing. Arming while a previous loop is still
// stopping is allowed: the new loop waits for the old one to exit before it
// starts counting.
func (s *Scheduler) Arm(ctx context.Context) error {
	interval := s.interval()

	s.mu.Lock()
	if s.phase == Armed || s.phase == Firing {
		s.mu.Unlock()
		return ErrAlreadyArmed
	}

	prevDone := s.done
	if s.phase == Idle {
		prevDone = nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.gen++
	gen := s.gen
	s.phase = Armed
	s.cancel = cancel
	s.done = done
	first := s.nextAfter(s.now(), interval)
	s.nextFire = first
	s.mu.Unlock()

	s.log.Info("Scheduler armed, interval %s", interval)
	s.onChange()
	go s.run(loopCtx, gen, prevDone, done, first)
	return nil
}

// Stop requests the loop to exit. It returns immediately; the loop notices
// within one tick. An update already in progress completes first.
// Stop on an idle scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.phase == Idle || s.phase == Stopping {
		s.mu.Unlock()
		return
	}
	s.phase = Stopping
	s.nextFire = time.Time{}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.log.Info("Scheduler stop requested")
	s.onChange()
}

// Wait blocks until the current loop has exited or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Phase returns the loop's current phase.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns the coarse lifecycle state.
func (s *Scheduler) State() State {
	switch s.Phase() {
	case Armed, Firing:
		return Running
	case Stopping:
		return StopRequested
	default:
		return Stopped
	}
}

// NextFire returns the advisory time of the next scheduled update. The zero
// time means nothing is scheduled.
func (s *Scheduler) NextFire() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFire
}

// interval reads the source interval and clamps it to at least one hour.
func (s *Scheduler) interval() time.Duration {
	hours := s.src.IntervalHours()
	if hours < 1 {
		hours = 1
	}
	return time.Duration(hours) * s.hourUnit
}

// nextAfter returns the fire time for a cycle starting at start.
func (s *Scheduler) nextAfter(start time.Time, interval time.Duration) time.Time {
	// cron.Every rounds to whole seconds, which would collapse
	// accelerated test intervals to one second.
	if interval < time.Second {
		return start.Add(interval)
	}
	return cron.Every(interval).Next(start)
}

func (s *Scheduler) run(ctx context.Context, gen uint64, prevDone <-chan struct{}, done chan struct{}, deadline time.Time) {
	defer close(done)
	defer s.exit(gen)

	start := s.now()
	if prevDone != nil {
		select {
		case <-prevDone:
		case <-ctx.Done():
			return
		}
		// Counting starts once the previous loop is gone.
		start = s.now()
		deadline = time.Time{}
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		if deadline.IsZero() {
			// The interval is re-read at the top of every cycle.
			deadline = s.nextAfter(start, s.interval())
			s.setNextFire(gen, deadline)
		}

		for s.now().Before(deadline) {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if !s.src.Enabled() {
				s.log.Info("Scheduler disabled, exiting loop")
				return
			}
		}

		if ctx.Err() != nil || !s.src.Enabled() {
			return
		}

		if !s.setPhase(gen, Armed, Firing) {
			return
		}
		url := s.src.URL()
		s.log.Info("Scheduled update firing for %s", url)
		s.fire(context.WithoutCancel(ctx), url)
		if !s.setPhase(gen, Firing, Armed) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		start = s.now()
		deadline = time.Time{}
	}
}

// setPhase moves from -> to when gen is still current. It reports whether
// the loop should continue.
func (s *Scheduler) setPhase(gen uint64, from, to Phase) bool {
	s.mu.Lock()
	if s.gen != gen || s.phase != from {
		s.mu.Unlock()
		return false
	}
	s.phase = to
	s.mu.Unlock()
	s.onChange()
	return true
}

func (s *Scheduler) setNextFire(gen uint64, t time.Time) {
	s.mu.Lock()
	if s.gen != gen || s.phase == Stopping {
		s.mu.Unlock()
		return
	}
	s.nextFire = t
	s.mu.Unlock()
	s.onChange()
}

// exit returns the scheduler to Idle unless a newer loop has taken over.
func (s *Scheduler) exit(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.phase = Idle
	s.nextFire = time.Time{}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.log.Info("Scheduler loop exited")
	s.onChange()
}
