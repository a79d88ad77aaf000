// Package scheduler runs the recurring settings update.
//
// A Scheduler owns at most one background loop. The loop waits in short
// increments (one second by default), checking for cancellation and for the
// schedule being disabled after every increment. When a full interval has
// elapsed it re-reads the source URL and invokes the fire callback, then
// starts the next cycle with a freshly read interval.
//
// Intervals below one hour are clamped to one hour. The hour itself is
// configurable so tests can run accelerated cycles.
package scheduler
