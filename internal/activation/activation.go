// Package activation lets a second launch wake the running instance.
//
// The losing launch writes a marker file and exits. The running instance
// polls the marker once per UI frame and deletes it on sight, so every
// signal is observed exactly once. Watch adds an fsnotify based early
// wake-up; polling stays authoritative.
package activation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// FileName is the marker file name inside the config directory.
const FileName = "activate.signal"

// Channel is the file-backed activation signal.
type Channel struct {
	path string
}

// New returns a Channel using the marker at path.
func New(path string) *Channel {
	return &Channel{path: filepath.Clean(path)}
}

// Path returns the marker path.
func (c *Channel) Path() string {
	return c.path
}

// Signal writes the marker. Concurrent signals resolve last-write-wins.
// The payload "<pid> <token>" is diagnostic only.
func (c *Channel) Signal() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create signal dir: %w", err)
	}
	payload := strconv.Itoa(os.Getpid()) + " " + uuid.NewString()
	tmp := c.path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, []byte(payload), 0644); err != nil {
		return fmt.Errorf("write signal: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

// Pending reports whether a signal is waiting, without consuming it.
func (c *Channel) Pending() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Consume deletes a pending marker and reports whether it did. When two
// consumers race only the one whose delete succeeds sees true.
func (c *Channel) Consume() bool {
	return os.Remove(c.path) == nil
}

// Token returns the diagnostic payload of a pending marker.
func (c *Channel) Token() (pid int, token string, err error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("malformed signal payload %q", data)
	}
	pid, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", fmt.Errorf("malformed signal pid: %w", err)
	}
	return pid, fields[1], nil
}

// Watch returns a channel that receives a value shortly after a marker is
// written. Deliveries coalesce. The channel is closed when ctx is done or
// the watcher fails.
func (c *Channel) Watch(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(c.path)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create signal dir: %w", err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch dir: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != c.path {
					continue
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return ch, nil
}
