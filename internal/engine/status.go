package engine

// Status is the one-line state shown to the operator.
type Status string

const (
	StatusNotStarted     Status = "Not started"
	StatusManualUpdating Status = "Manual update in progress"
	StatusUpdatingArmed  Status = "Updating now, scheduler started"
	StatusSchedulerArmed Status = "Scheduler started"
	StatusManualFinished Status = "Manual update finished"
	StatusStopped        Status = "Stopped"
	StatusInvalidInput   Status = "Enter a valid URL and interval"
	StatusInvalidURL     Status = "Enter a valid download URL"
)

func (s Status) String() string {
	return string(s)
}
