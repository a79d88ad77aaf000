// Package settingsync holds the building blocks of the settings update engine:
// the HTTP fetcher, the backup-then-replace writer, the update history and the
// mutex-guarded schedule state shared between the UI and the scheduler.
package settingsync

import (
	"fmt"
	"strings"
)

const (
	// DefaultURL is the settings document source used when nothing is persisted.
	DefaultURL = "http://13.48.27.126/settings.xml"
	// DefaultIntervalHours is the schedule interval used when nothing is persisted.
	DefaultIntervalHours = 10
	// MinIntervalHours is the smallest accepted interval.
	MinIntervalHours = 1
	// MaxIntervalHours is the largest accepted interval (one week).
	MaxIntervalHours = 168
)

// ScheduleConfig is the operator-controlled schedule: the source URL, the
// repeat interval in hours and whether the recurring schedule is enabled.
type ScheduleConfig struct {
	URL           string `json:"url"`
	IntervalHours int    `json:"interval_hours"`
	Enabled       bool   `json:"enabled"`
}

// DefaultScheduleConfig returns the configuration used on first launch.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		URL:           DefaultURL,
		IntervalHours: DefaultIntervalHours,
		Enabled:       false,
	}
}

// Validate checks the interval bounds. The URL is not validated here: an
// invalid URL may be stored, it is only refused at dispatch time.
func (c ScheduleConfig) Validate() error {
	return ValidateInterval(c.IntervalHours)
}

// ValidateInterval returns ErrInvalidInterval when hours is outside
// [MinIntervalHours, MaxIntervalHours].
func ValidateInterval(hours int) error {
	if hours < MinIntervalHours || hours > MaxIntervalHours {
		return fmt.Errorf("%w: %d (must be %d..%d)", ErrInvalidInterval, hours, MinIntervalHours, MaxIntervalHours)
	}
	return nil
}

// IsDispatchableURL reports whether url has an http:// or https:// prefix.
// Only such URLs are ever handed to the network.
func IsDispatchableURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
