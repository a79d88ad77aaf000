package settingsync

import (
	"fmt"
	"time"
)

// RecordTimeLayout is the timestamp layout used in history lines.
const RecordTimeLayout = "2006-01-02 15:04:05"

// Trigger identifies what started an update.
type Trigger int

const (
	// Manual updates are started by the operator.
	Manual Trigger = iota
	// Scheduled updates are started by the scheduler loop.
	Scheduled
)

func (t Trigger) String() string {
	if t == Scheduled {
		return "scheduled"
	}
	return "manual"
}

// UpdateRecord is one completed update attempt. Err is empty on success.
type UpdateRecord struct {
	Time    time.Time
	Trigger Trigger
	Err     string
}

// NewUpdateRecord builds a record for an attempt that finished at t.
func NewUpdateRecord(t time.Time, trigger Trigger, err error) UpdateRecord {
	rec := UpdateRecord{Time: t, Trigger: trigger}
	if err != nil {
		rec.Err = err.Error()
	}
	return rec
}

// Success reports whether the attempt succeeded.
func (r UpdateRecord) Success() bool {
	return r.Err == ""
}

// String renders the record as a history line, e.g.
// "2024-05-01 10:00:00: scheduled update succeeded".
func (r UpdateRecord) String() string {
	ts := r.Time.Format(RecordTimeLayout)
	if r.Success() {
		return fmt.Sprintf("%s: %s update succeeded", ts, r.Trigger)
	}
	return fmt.Sprintf("%s: %s update failed - %s", ts, r.Trigger, r.Err)
}
