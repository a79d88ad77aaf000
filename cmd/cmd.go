// Package cmd implements the msettings command line.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/msettings/msettings/cmd/common"
	"github.com/urfave/cli"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var (
	configDir  string
	targetPath string

	pathFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "config-dir, c",
			Usage:       "directory holding config.json, the lock and the log (env: MSETTINGS_CONFIG_DIR)",
			Destination: &configDir,
		},
		cli.StringFlag{
			Name:        "target, t",
			Usage:       "settings file kept in sync (env: MSETTINGS_TARGET)",
			Destination: &targetPath,
		},
	}
)

func Execute(args []string, bArgs BuildArgs) error {
	app := cli.App{
		Name:                  "msettings",
		HelpName:              "msettings",
		Usage:                 "Keeps a Maven settings.xml in sync with a remote copy.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "msettings <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:                   "run",
				Aliases:                []string{"r"},
				Usage:                  "start the interface or the headless scheduler",
				Action:                 run,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            RunDescription,
				UseShortOptionHandling: true,
				Flags:                  runFlags,
			},
			{
				Name:                   "update",
				Aliases:                []string{"u"},
				Usage:                  "fetch the settings document once",
				Action:                 update,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            UpdateDescription,
				UseShortOptionHandling: true,
				Flags:                  updateFlags,
			},
			{
				Name:               "activate",
				Aliases:            []string{"a"},
				Usage:              "bring the running instance to the foreground",
				Action:             activate,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ActivateDescription,
				Flags:              pathFlags,
			},
			{
				Name:               "config",
				Usage:              "show or change the saved schedule",
				Action:             showConfig,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ConfigDescription,
				Flags:              configFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of msettings",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:                 run,
		Flags:                  runFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
