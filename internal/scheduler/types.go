package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/msettings/msettings/pkg/logger"
)

// ErrAlreadyArmed is returned by Arm when a loop is already running.
var ErrAlreadyArmed = errors.New("scheduler already armed")

// Phase is the loop's position in its state machine.
type Phase int

const (
	// Idle means no loop is running.
	Idle Phase = iota
	// Armed means the loop is waiting for the interval to elapse.
	Armed
	// Firing means the fire callback is running.
	Firing
	// Stopping means cancellation was requested and the loop has not exited yet.
	Stopping
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Firing:
		return "firing"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// State is the coarse lifecycle of the loop as seen by its owner.
type State int

const (
	Stopped State = iota
	Running
	StopRequested
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop requested"
	default:
		return "stopped"
	}
}

// Source supplies the live schedule. It is read at every increment, so
// changes made by other goroutines take effect without re-arming.
type Source interface {
	URL() string
	IntervalHours() int
	Enabled() bool
}

// FireFunc performs one scheduled update for url. The context is not
// cancelled by Stop, so an update that has started runs to completion.
type FireFunc func(ctx context.Context, url string)

// Config tunes a Scheduler. Zero values select the defaults.
type Config struct {
	// Tick is the polling increment. Defaults to one second.
	Tick time.Duration
	// HourUnit is the length of one interval hour. Defaults to time.Hour.
	HourUnit time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// OnChange is called after every phase or next-fire change.
	OnChange func()
	// Logger receives lifecycle messages.
	Logger logger.Logger
}

const (
	DefaultTick     = time.Second
	DefaultHourUnit = time.Hour
)
