package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/msettings/msettings/pkg/settingsync"
)

const (
	// TimeoutEnv sets the fetch timeout, as a Go duration ("45s") or whole seconds ("45").
	TimeoutEnv = "MSETTINGS_TIMEOUT"
	// ProxyEnv sets an explicit proxy URL (http, https or socks5).
	ProxyEnv = "MSETTINGS_PROXY"
)

// Settings holds process-wide tunables read from the environment.
type Settings struct {
	FetchTimeout time.Duration
	// ProxyURL is empty when the standard proxy environment variables apply.
	ProxyURL string
}

// ValidationError describes one invalid environment value.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadSettings reads Settings from the environment and validates them.
func LoadSettings() (Settings, error) {
	s := Settings{
		FetchTimeout: settingsync.DefaultFetchTimeout,
		ProxyURL:     strings.TrimSpace(os.Getenv(ProxyEnv)),
	}

	if raw := strings.TrimSpace(os.Getenv(TimeoutEnv)); raw != "" {
		d, err := parseTimeout(raw)
		if err != nil {
			return s, ValidationError{Field: TimeoutEnv, Message: err.Error()}
		}
		s.FetchTimeout = d
	}

	if s.ProxyURL != "" {
		if _, err := settingsync.ParseProxyURL(s.ProxyURL); err != nil {
			return s, ValidationError{Field: ProxyEnv, Message: err.Error()}
		}
	}
	return s, nil
}

func parseTimeout(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %v", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}
