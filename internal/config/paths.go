// Package config resolves MSettings file locations, persists the schedule
// configuration and reads environment tunables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/msettings/msettings/internal/activation"
	"github.com/msettings/msettings/internal/instance"
	"github.com/msettings/msettings/pkg/settingsync"
)

const (
	// ConfigDirEnv overrides the default configuration directory.
	ConfigDirEnv = "MSETTINGS_CONFIG_DIR"
	// TargetEnv overrides the default settings.xml location.
	TargetEnv = "MSETTINGS_TARGET"
)

const (
	configDirName  = ".msettings"
	configFileName = "config.json"
	logFileName    = "msettings.log"
	legacyFileName = ".msettings_config"
)

// ErrNoHomeDir is returned when no home directory can be determined and no
// override is given.
var ErrNoHomeDir = errors.New("cannot determine home directory")

// userHomeDir is swapped in tests.
var userHomeDir = os.UserHomeDir

// Paths holds every file location used by the application. It is resolved
// once at startup and constant afterwards.
type Paths struct {
	// ConfigDir holds the config file, the lock, the log and the activation marker.
	ConfigDir string
	// Target is the settings.xml file kept in sync.
	Target string
	// Backup is where the previous Target contents are copied before a replace.
	Backup string
	// ConfigFile is the persisted schedule configuration.
	ConfigFile string
	// LegacyFile is the plain-text URL file written by earlier releases.
	LegacyFile string
	// ActivationSignal is the marker a second launch writes.
	ActivationSignal string
	// LockFile is the single-instance lock.
	LockFile string
	// LogFile is the append-only application log.
	LogFile string
}

// ResolvePaths computes Paths. Non-empty flag values win over the
// MSETTINGS_CONFIG_DIR and MSETTINGS_TARGET environment variables, which win
// over the home-directory defaults.
func ResolvePaths(configDirFlag, targetFlag string) (Paths, error) {
	configDir := firstNonEmpty(configDirFlag, os.Getenv(ConfigDirEnv))
	target := firstNonEmpty(targetFlag, os.Getenv(TargetEnv))

	home, homeErr := userHomeDir()
	if homeErr != nil || home == "" {
		if configDir == "" || target == "" {
			return Paths{}, fmt.Errorf("%w: %v", ErrNoHomeDir, homeErr)
		}
	}
	if configDir == "" {
		configDir = filepath.Join(home, configDirName)
	}
	if target == "" {
		target = filepath.Join(home, ".m2", "settings.xml")
	}

	var err error
	if configDir, err = filepath.Abs(configDir); err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}
	if target, err = filepath.Abs(target); err != nil {
		return Paths{}, fmt.Errorf("resolve target: %w", err)
	}

	p := Paths{
		ConfigDir:        configDir,
		Target:           target,
		Backup:           settingsync.BackupPath(target),
		ConfigFile:       filepath.Join(configDir, configFileName),
		ActivationSignal: filepath.Join(configDir, activation.FileName),
		LockFile:         filepath.Join(configDir, instance.FileName),
		LogFile:          filepath.Join(configDir, logFileName),
	}
	if home != "" {
		p.LegacyFile = filepath.Join(home, legacyFileName)
	}
	return p, nil
}

// EnsureConfigDir creates the config directory if needed.
func (p Paths) EnsureConfigDir() error {
	if err := os.MkdirAll(p.ConfigDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
