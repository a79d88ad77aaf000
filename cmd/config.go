package cmd

import "time"

const (
	// DEF_SHUTDOWN_TIMEOUT bounds how long run waits for in-flight updates
	// after the scheduler is stopped.
	DEF_SHUTDOWN_TIMEOUT = 45 * time.Second
	// DEF_HEADLESS_POLL is the activation poll period in headless mode.
	DEF_HEADLESS_POLL = time.Second
)

const DESCRIPTION = `
MSettings keeps a local Maven settings.xml in sync with a copy served
over HTTP. It fetches the remote document on demand and on a fixed
hourly schedule, backs up the current file and swaps the new one in
atomically.
`

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const (
	RunDescription = `The run command starts MSettings. By default it opens the
terminal interface; with --headless it runs the scheduler
in the background and logs to stdout and the log file.

Only one instance runs per config directory. Launching a
second one brings the first to the foreground and exits.

Example:
        msettings
                OR
        msettings run --headless

`
	UpdateDescription = `The update command fetches the settings document once and
replaces the target file, keeping a backup of the previous
contents. The URL defaults to the one saved in the config.

Example:
        msettings update
        msettings update --url https://host/settings.xml

`
	ActivateDescription = `The activate command asks a running MSettings instance to
show its window.

Example:
        msettings activate

`
	ConfigDescription = `The config command prints the resolved file locations and
the saved schedule. Flags change the saved schedule; a
running instance picks the change up immediately.

Example:
        msettings config
        msettings config --interval 6 --enable

`
)
