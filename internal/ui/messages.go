// Package ui provides the Bubble Tea front end for MSettings.
package ui

import "time"

// FrameTick drives the 100ms frame loop that polls for activation.
type FrameTick time.Time

// EngineChanged is sent when the engine announces a state change.
type EngineChanged struct{}

// ActivationWake is sent when the activation watcher saw a new marker.
// The next poll happens immediately instead of at the next frame.
type ActivationWake struct{}

// ActionFailed reports an error returned by an engine operation.
type ActionFailed struct {
	Err error
}
