package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/msettings/msettings/internal/engine"
	"github.com/msettings/msettings/internal/scheduler"
	"github.com/msettings/msettings/pkg/settingsync"
)

// FrameInterval is the period of the activation poll.
const FrameInterval = 100 * time.Millisecond

const historyLines = 10

// EngineAPI is the subset of the engine the UI drives.
type EngineAPI interface {
	Start() error
	Stop()
	UpdateNow() error
	SetURL(url string)
	SetInterval(hours int) error
	SetEnabled(enabled bool)
	Snapshot() engine.View
	Changes() <-chan struct{}
}

// Activator is polled once per frame for a pending activation request.
type Activator interface {
	Consume() bool
}

type field int

const (
	fieldURL field = iota
	fieldInterval
	fieldScheduler
	fieldCount
)

// App is the root Bubble Tea model.
// App never performs fetch or file I/O itself: every action goes through
// EngineAPI, which runs updates on background goroutines.
type App struct {
	eng  EngineAPI
	act  Activator
	wake <-chan struct{}

	view      engine.View
	url       textinput.Model
	focus     field
	collapsed bool
	// activations counts consumed activation requests.
	activations int
	err         error
	width       int
	height      int
}

// NewApp creates an App. act may be nil when no activation channel is
// available; wake, when non-nil, delivers early activation wake-ups.
func NewApp(eng EngineAPI, act Activator, wake <-chan struct{}) App {
	ti := textinput.New()
	ti.Placeholder = "http://host/settings.xml"
	ti.CharLimit = 2048
	ti.Width = 60

	a := App{
		eng:  eng,
		act:  act,
		wake: wake,
		url:  ti,
		view: eng.Snapshot(),
	}
	a.url.SetValue(a.view.Config.URL)
	a.url.Focus()
	return a
}

// Init starts the frame loop and the change and wake listeners.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		frameTick(),
		waitForChange(a.eng.Changes()),
		waitForWake(a.wake),
		textinput.Blink,
	)
}

func frameTick() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg {
		return FrameTick(t)
	})
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return EngineChanged{}
	}
}

func waitForWake(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return ActivationWake{}
	}
}

// Visible reports whether the full form is shown.
func (a App) Visible() bool {
	return !a.collapsed
}

// Activations returns how many activation requests were consumed.
func (a App) Activations() int {
	return a.activations
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case FrameTick:
		a.pollActivation()
		a.refresh()
		return a, frameTick()

	case ActivationWake:
		a.pollActivation()
		return a, waitForWake(a.wake)

	case EngineChanged:
		a.refresh()
		return a, waitForChange(a.eng.Changes())

	case ActionFailed:
		a.err = msg.Err
		a.refresh()
		return a, nil
	}

	if a.focus == fieldURL {
		var cmd tea.Cmd
		a.url, cmd = a.url.Update(msg)
		return a, cmd
	}
	return a, nil
}

// pollActivation consumes a pending activation and brings the form back.
func (a *App) pollActivation() {
	if a.act == nil || !a.act.Consume() {
		return
	}
	a.activations++
	a.collapsed = false
	a.setFocus(fieldURL)
}

func (a *App) refresh() {
	a.view = a.eng.Snapshot()
	if a.focus != fieldURL {
		a.url.SetValue(a.view.Config.URL)
	}
}

func (a *App) setFocus(f field) {
	if a.focus == fieldURL && f != fieldURL {
		a.commitURL()
	}
	a.focus = f
	if f == fieldURL {
		a.url.Focus()
	} else {
		a.url.Blur()
	}
}

func (a *App) commitURL() {
	url := strings.TrimSpace(a.url.Value())
	if url != a.view.Config.URL {
		a.eng.SetURL(url)
	}
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.err != nil {
		a.err = nil
	}

	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "tab":
		a.setFocus((a.focus + 1) % fieldCount)
		a.refresh()
		return a, nil
	case "shift+tab":
		a.setFocus((a.focus + fieldCount - 1) % fieldCount)
		a.refresh()
		return a, nil
	case "enter":
		return a.toggleRun()
	}

	if a.focus == fieldURL {
		if msg.String() == "esc" {
			a.setFocus(fieldInterval)
			a.refresh()
			return a, nil
		}
		var cmd tea.Cmd
		a.url, cmd = a.url.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "u":
		if err := a.eng.UpdateNow(); err != nil {
			a.err = err
		}
		a.refresh()
	case " ":
		a.eng.SetEnabled(!a.view.Config.Enabled)
		a.refresh()
	case "h":
		a.collapsed = !a.collapsed
	case "+", "=", "right":
		a.adjustInterval(1)
	case "-", "left":
		a.adjustInterval(-1)
	}
	return a, nil
}

// toggleRun starts auto update, or stops it when something is running.
func (a App) toggleRun() (tea.Model, tea.Cmd) {
	if a.focus == fieldURL {
		a.commitURL()
		a.refresh()
	}
	if a.view.Running {
		a.eng.Stop()
	} else if err := a.eng.Start(); err != nil {
		a.err = err
	}
	a.refresh()
	return a, nil
}

func (a *App) adjustInterval(delta int) {
	hours := a.view.Config.IntervalHours + delta
	if hours < settingsync.MinIntervalHours {
		hours = settingsync.MinIntervalHours
	}
	if hours > settingsync.MaxIntervalHours {
		hours = settingsync.MaxIntervalHours
	}
	if err := a.eng.SetInterval(hours); err != nil {
		a.err = err
	}
	a.refresh()
}

// View renders the UI.
func (a App) View() string {
	if a.collapsed {
		return StatusBar.Render(fmt.Sprintf("MSettings: %s", a.view.Status)) + "  " +
			StatusBarText.Render("h to expand, q to quit")
	}

	var b strings.Builder
	b.WriteString(Title.Render("MSettings"))
	b.WriteString("\n\n")

	b.WriteString(a.label(fieldURL, "URL"))
	b.WriteString(a.url.View())
	b.WriteString("\n")

	b.WriteString(a.label(fieldInterval, "Interval"))
	b.WriteString(fmt.Sprintf("%d h", a.view.Config.IntervalHours))
	b.WriteString("\n")

	b.WriteString(a.label(fieldScheduler, "Scheduler"))
	if a.view.Config.Enabled {
		b.WriteString("[x] enabled")
	} else {
		b.WriteString("[ ] disabled")
	}
	b.WriteString("\n\n")

	b.WriteString(Card.Render(a.statusCard()))
	b.WriteString("\n\n")

	b.WriteString(a.historyView())
	b.WriteString("\n")

	if a.err != nil {
		b.WriteString(FailureLine.Render("Error: " + a.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(a.keyHints())
	return b.String()
}

func (a App) label(f field, text string) string {
	if a.focus == f {
		return FocusedLabel.Render("> " + text)
	}
	return Label.Render("  " + text)
}

func (a App) statusCard() string {
	var lines []string
	lines = append(lines, "Status: "+a.view.Status.String())
	action := "Start auto update"
	if a.view.Running {
		action = "Stop auto update"
	}
	lines = append(lines, "Action: "+action)
	if a.view.SchedulerState == scheduler.Running && !a.view.NextFire.IsZero() {
		lines = append(lines, "Next update: "+a.view.NextFire.Format(settingsync.RecordTimeLayout))
	}
	return strings.Join(lines, "\n")
}

func (a App) historyView() string {
	if len(a.view.History) == 0 {
		return StatusBarText.Render("No updates yet")
	}
	var b strings.Builder
	b.WriteString("History\n")
	shown := 0
	for i := len(a.view.History) - 1; i >= 0 && shown < historyLines; i-- {
		rec := a.view.History[i]
		if rec.Success() {
			b.WriteString(SuccessLine.Render(rec.String()))
		} else {
			b.WriteString(FailureLine.Render(rec.String()))
		}
		b.WriteString("\n")
		shown++
	}
	return b.String()
}

func (a App) keyHints() string {
	hints := []struct{ key, text string }{
		{"tab", "field"},
		{"enter", "start/stop"},
		{"u", "update now"},
		{"space", "scheduler"},
		{"+/-", "interval"},
		{"h", "hide"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, StatusBarKey.Render(h.key)+" "+StatusBarText.Render(h.text))
	}
	return StatusBar.Render(strings.Join(parts, "  "))
}
