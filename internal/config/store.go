package config

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/msettings/msettings/pkg/logger"
	"github.com/msettings/msettings/pkg/settingsync"
)

// ErrConfigParse is returned by Load when the config file exists but
// cannot be decoded. Defaults are returned alongside it.
var ErrConfigParse = errors.New("config file is not valid JSON")

const watchDebounce = 200 * time.Millisecond

// Store persists the schedule configuration as a JSON file.
type Store struct {
	path       string
	legacyPath string
	log        logger.Logger
	mu         sync.Mutex
}

// NewStore creates a Store for path. legacyPath, when non-empty, names the
// plain-text URL file of earlier releases that Load migrates from.
func NewStore(path, legacyPath string, l logger.Logger) *Store {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Store{
		path:       filepath.Clean(path),
		legacyPath: legacyPath,
		log:        l,
	}
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the configuration. A missing file yields the defaults, after
// migrating the legacy URL file if one exists. An undecodable file yields
// the defaults and ErrConfigParse. An out-of-range interval is reset to the
// default.
func (s *Store) Load() (settingsync.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := settingsync.DefaultScheduleConfig()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.migrateLegacy(cfg), nil
		}
		return cfg, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	loaded := settingsync.DefaultScheduleConfig()
	dec := json.NewDecoder(bufio.NewReader(f))
	if err := dec.Decode(&loaded); err != nil {
		s.log.Error("Failed to parse %s: %v", s.path, err)
		return cfg, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := loaded.Validate(); err != nil {
		s.log.Warning("Ignoring interval in %s: %v", s.path, err)
		loaded.IntervalHours = settingsync.DefaultIntervalHours
	}
	return loaded, nil
}

// migrateLegacy adopts the URL from the legacy file and writes the new
// config file. Failures leave cfg untouched apart from the URL.
func (s *Store) migrateLegacy(cfg settingsync.ScheduleConfig) settingsync.ScheduleConfig {
	if s.legacyPath == "" {
		return cfg
	}
	data, err := os.ReadFile(s.legacyPath)
	if err != nil {
		return cfg
	}
	url := strings.TrimSpace(string(data))
	if url == "" {
		return cfg
	}
	cfg.URL = url
	if err := s.save(cfg); err != nil {
		s.log.Warning("Failed to migrate %s: %v", s.legacyPath, err)
		return cfg
	}
	s.log.Info("Migrated saved URL from %s", s.legacyPath)
	return cfg
}

// Save writes cfg atomically via a temp file and rename.
func (s *Store) Save(cfg settingsync.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(cfg)
}

func (s *Store) save(cfg settingsync.ScheduleConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode config: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}

// Watch reports changes to the config file, debounced so an atomic save
// produces one event. The channel is closed when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir config dir: %w", err)
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

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		defer w.Close()

		timer := time.NewTimer(watchDebounce)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()
		pending := false

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != s.path {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if pending && !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					pending = true
					timer.Reset(watchDebounce)
				}
			case <-timer.C:
				if !pending {
					continue
				}
				pending = false
				select {
				case ch <- struct{}{}:
				case <-ctx.Done():
					return
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
