package settingsync

import "sync"

// State is the single source of truth for the schedule configuration and
// the update history. Every method is one critical section on one mutex;
// no I/O happens while it is held.
//
// After every mutation a notification is sent on Changes. Notifications
// coalesce: a receiver that falls behind sees a single pending signal.
type State struct {
	mu      sync.Mutex
	cfg     ScheduleConfig
	history []UpdateRecord
	changes chan struct{}
}

// NewState creates a State holding cfg and an empty history.
func NewState(cfg ScheduleConfig) *State {
	return &State{
		cfg:     cfg,
		changes: make(chan struct{}, 1),
	}
}

// Snapshot returns a consistent copy of the configuration.
func (s *State) Snapshot() ScheduleConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// URL returns the current source URL.
func (s *State) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.URL
}

// IntervalHours returns the current interval.
func (s *State) IntervalHours() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.IntervalHours
}

// Enabled reports whether the recurring schedule is enabled.
func (s *State) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// SetURL stores url. It reports whether the value changed.
func (s *State) SetURL(url string) bool {
	s.mu.Lock()
	changed := s.cfg.URL != url
	s.cfg.URL = url
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

// SetIntervalHours stores hours after validating it. It reports whether the
// value changed.
func (s *State) SetIntervalHours(hours int) (bool, error) {
	if err := ValidateInterval(hours); err != nil {
		return false, err
	}
	s.mu.Lock()
	changed := s.cfg.IntervalHours != hours
	s.cfg.IntervalHours = hours
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed, nil
}

// SetEnabled stores the enablement flag. It reports whether the value changed.
func (s *State) SetEnabled(enabled bool) bool {
	s.mu.Lock()
	changed := s.cfg.Enabled != enabled
	s.cfg.Enabled = enabled
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

// Replace swaps the whole configuration after validating it.
func (s *State) Replace(cfg ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.notify()
	return nil
}

// AppendHistory pushes rec to the end of the history.
func (s *State) AppendHistory(rec UpdateRecord) {
	s.mu.Lock()
	s.history = append(s.history, rec)
	s.mu.Unlock()
	s.notify()
}

// History returns a copy of the history in completion order.
func (s *State) History() []UpdateRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UpdateRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Changes returns the change notification channel.
func (s *State) Changes() <-chan struct{} {
	return s.changes
}

// Notify emits a change notification without mutating anything. Collaborators
// that keep their own state (status text, scheduler phase) use it to request
// a repaint.
func (s *State) Notify() {
	s.notify()
}

func (s *State) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
