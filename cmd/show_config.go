package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/msettings/msettings/cmd/common"
	"github.com/msettings/msettings/internal/config"
	"github.com/msettings/msettings/pkg/settingsync"
	"github.com/urfave/cli"
)

var (
	cfgURL      string
	cfgInterval int
	cfgEnable   bool
	cfgDisable  bool

	configFlags = append([]cli.Flag{
		cli.StringFlag{
			Name:        "url, u",
			Usage:       "save a new settings URL",
			Destination: &cfgURL,
		},
		cli.IntFlag{
			Name:        "interval, i",
			Usage:       "save a new update interval in hours (1-168)",
			Destination: &cfgInterval,
		},
		cli.BoolFlag{
			Name:        "enable",
			Usage:       "enable the scheduler",
			Destination: &cfgEnable,
		},
		cli.BoolFlag{
			Name:        "disable",
			Usage:       "disable the scheduler",
			Destination: &cfgDisable,
		},
	}, pathFlags...)
)

var errEnableDisable = errors.New("--enable and --disable cannot be used together")

// configOutput is swapped in tests.
var configOutput io.Writer = os.Stdout

func showConfig(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return common.Help(ctx)
	}
	p, err := config.ResolvePaths(configDir, targetPath)
	if err != nil {
		common.PrintRuntimeErr(ctx, "config", "resolve_paths", err)
		return nil
	}

	store := config.NewStore(p.ConfigFile, p.LegacyFile, nil)
	cfg, err := store.Load()
	if err != nil && !errors.Is(err, config.ErrConfigParse) {
		common.PrintRuntimeErr(ctx, "config", "load", err)
		return nil
	}

	changed, err := applyConfigFlags(ctx, &cfg)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	if changed {
		if err := p.EnsureConfigDir(); err != nil {
			common.PrintRuntimeErr(ctx, "config", "config_dir", err)
			return nil
		}
		if err := store.Save(cfg); err != nil {
			common.PrintRuntimeErr(ctx, "config", "save", err)
			return nil
		}
	}
	printConfig(configOutput, p, cfg)
	return nil
}

// applyConfigFlags copies the flags the user set into cfg and reports
// whether anything changed.
func applyConfigFlags(ctx *cli.Context, cfg *settingsync.ScheduleConfig) (bool, error) {
	if cfgEnable && cfgDisable {
		return false, errEnableDisable
	}
	next := *cfg
	if ctx.IsSet("url") {
		next.URL = cfgURL
	}
	if ctx.IsSet("interval") {
		if err := settingsync.ValidateInterval(cfgInterval); err != nil {
			return false, err
		}
		next.IntervalHours = cfgInterval
	}
	if cfgEnable {
		next.Enabled = true
	}
	if cfgDisable {
		next.Enabled = false
	}
	if next == *cfg {
		return false, nil
	}
	*cfg = next
	return true, nil
}

func printConfig(w io.Writer, p config.Paths, cfg settingsync.ScheduleConfig) {
	section := func(name string) {
		fmt.Fprintf(w, "[%s]\n", common.CenterTitle(name, 20))
	}
	row := func(k, v string) {
		fmt.Fprintf(w, "%-16s%s\n", k+":", v)
	}

	section("Schedule")
	row("URL", cfg.URL)
	row("Interval", strconv.Itoa(cfg.IntervalHours)+" hour(s)")
	row("Enabled", strconv.FormatBool(cfg.Enabled))
	fmt.Fprintln(w)

	section("Paths")
	row("Target", p.Target)
	row("Backup", p.Backup)
	row("Config file", p.ConfigFile)
	row("Activation", p.ActivationSignal)
	row("Lock file", p.LockFile)
	row("Log file", p.LogFile)
}
