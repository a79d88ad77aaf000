package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/msettings/msettings/cmd/common"
	"github.com/msettings/msettings/internal/activation"
	"github.com/msettings/msettings/internal/config"
	"github.com/msettings/msettings/internal/engine"
	"github.com/msettings/msettings/internal/instance"
	"github.com/msettings/msettings/internal/ui"
	"github.com/msettings/msettings/pkg/logger"
	"github.com/msettings/msettings/pkg/settingsync"
	"github.com/urfave/cli"
)

var (
	headless bool

	runFlags = append([]cli.Flag{
		cli.BoolFlag{
			Name:        "headless",
			Usage:       "run the scheduler without the terminal interface",
			Destination: &headless,
		},
	}, pathFlags...)
)

// runInterface is swapped in tests.
var runInterface = func(ctx context.Context, eng *engine.Engine, act ui.Activator, wake <-chan struct{}) error {
	p := tea.NewProgram(ui.NewApp(eng, act, wake), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func run(ctx *cli.Context) error {
	if arg := ctx.Args().First(); arg != "" {
		if arg == "help" {
			return common.Help(ctx)
		}
		return common.UsageErrorCallback(ctx, fmt.Errorf("unknown command %q", arg), false)
	}

	p, err := config.ResolvePaths(configDir, targetPath)
	if err != nil {
		common.PrintRuntimeErr(ctx, "run", "resolve_paths", err)
		return nil
	}
	if err := p.EnsureConfigDir(); err != nil {
		common.PrintRuntimeErr(ctx, "run", "config_dir", err)
		return nil
	}

	lock, err := instance.Acquire(p.LockFile)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		// The losing launch only wakes the winner.
		_ = activation.New(p.ActivationSignal).Signal()
		if pid, ok := instance.Owner(p.LockFile); ok {
			fmt.Printf("msettings is already running (pid %d)\n", pid)
		}
		return nil
	}
	if err != nil {
		common.PrintRuntimeErr(ctx, "run", "acquire_lock", err)
		return nil
	}
	defer lock.Release()

	l, err := newLogger(p.LogFile, headless)
	if err != nil {
		common.PrintRuntimeErr(ctx, "run", "logger", err)
		return nil
	}
	defer l.Close()

	eng, store, err := newEngine(p, l)
	if err != nil {
		l.Error("Failed to start: %v", err)
		common.PrintRuntimeErr(ctx, "run", "new_engine", err)
		return nil
	}

	sigCtx, cancel := setupShutdownHandler()
	defer cancel()

	if err := eng.WatchConfig(sigCtx, store); err != nil {
		l.Warning("Not watching %s: %v", store.Path(), err)
	}

	act := activation.New(p.ActivationSignal)
	if act.Consume() {
		l.Info("Discarded stale activation request")
	}
	wake, err := act.Watch(sigCtx)
	if err != nil {
		l.Warning("Activation watch unavailable, polling only: %v", err)
		wake = nil
	}

	l.Info("MSettings started (pid %d), target %s", os.Getpid(), p.Target)
	if headless {
		err = runHeadless(sigCtx, eng, act, wake, l)
	} else {
		err = runInterface(sigCtx, eng, act, wake)
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), DEF_SHUTDOWN_TIMEOUT)
	defer closeCancel()
	if cerr := eng.Close(closeCtx); cerr != nil {
		l.Warning("Updates still running at exit: %v", cerr)
	}
	l.Info("MSettings stopped")

	if err != nil {
		common.PrintRuntimeErr(ctx, "run", "interface", err)
	}
	return nil
}

// newLogger opens the log file. Headless runs also log to stdout.
func newLogger(path string, toStdout bool) (logger.Logger, error) {
	fileLog, err := logger.NewFileLogger(path)
	if err != nil {
		return nil, err
	}
	if !toStdout {
		return fileLog, nil
	}
	return logger.NewMultiLogger(
		logger.NewStandardLogger(log.New(os.Stdout, "", log.LstdFlags)),
		fileLog,
	), nil
}

// newFetcher builds a Fetcher honouring the timeout and proxy settings.
func newFetcher(s config.Settings) (*settingsync.Fetcher, error) {
	client, err := settingsync.NewHTTPClient(s.ProxyURL, s.FetchTimeout)
	if err != nil {
		return nil, err
	}
	return settingsync.NewFetcher(&settingsync.FetcherOpts{
		Client:  client,
		Timeout: s.FetchTimeout,
	})
}

// newEngine loads the saved schedule and wires the engine to it. A config
// file that fails to parse is logged and replaced by the defaults.
func newEngine(p config.Paths, l logger.Logger) (*engine.Engine, *config.Store, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, nil, err
	}
	fetcher, err := newFetcher(settings)
	if err != nil {
		return nil, nil, err
	}

	store := config.NewStore(p.ConfigFile, p.LegacyFile, l)
	cfg, err := store.Load()
	if err != nil {
		if !errors.Is(err, config.ErrConfigParse) {
			return nil, nil, err
		}
		l.Warning("Starting with default settings: %v", err)
	}

	eng, err := engine.New(cfg, engine.Options{
		Target:   p.Target,
		Fetcher:  fetcher,
		Replacer: settingsync.NewReplacer(nil, l),
		Store:    store,
		Logger:   l,
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, store, nil
}
