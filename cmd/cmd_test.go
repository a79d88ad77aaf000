package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/msettings/msettings/cmd/common"
	"github.com/msettings/msettings/internal/activation"
	"github.com/msettings/msettings/internal/config"
	"github.com/msettings/msettings/internal/engine"
	"github.com/msettings/msettings/internal/instance"
	"github.com/msettings/msettings/internal/scheduler"
	"github.com/msettings/msettings/internal/ui"
	"github.com/msettings/msettings/pkg/logger"
	"github.com/msettings/msettings/pkg/settingsync"
)

// testEnv isolates a test from the user's home and environment.
type testEnv struct {
	dir    string
	target string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv(config.ConfigDirEnv, "")
	t.Setenv(config.TargetEnv, "")
	t.Setenv(config.TimeoutEnv, "")
	t.Setenv(config.ProxyEnv, "")

	origOut := progressOutput
	progressOutput = nil
	t.Cleanup(func() { progressOutput = origOut })

	dir := t.TempDir()
	return testEnv{
		dir:    filepath.Join(dir, "conf"),
		target: filepath.Join(dir, "m2", "settings.xml"),
	}
}

func (e testEnv) args(cmd string, extra ...string) []string {
	args := []string{"msettings"}
	if cmd != "" {
		args = append(args, cmd)
	}
	args = append(args, "--config-dir", e.dir, "--target", e.target)
	return append(args, extra...)
}

func (e testEnv) paths(t *testing.T) config.Paths {
	t.Helper()
	p, err := config.ResolvePaths(e.dir, e.target)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	return p
}

func (e testEnv) saveConfig(t *testing.T, cfg settingsync.ScheduleConfig) {
	t.Helper()
	p := e.paths(t)
	if err := p.EnsureConfigDir(); err != nil {
		t.Fatal(err)
	}
	if err := config.NewStore(p.ConfigFile, "", nil).Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func (e testEnv) loadConfig(t *testing.T) settingsync.ScheduleConfig {
	t.Helper()
	cfg, err := config.NewStore(e.paths(t).ConfigFile, "", nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func serveSettings(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteVersion(t *testing.T) {
	err := Execute([]string{"msettings", "version"}, BuildArgs{
		Version:   "1.2.3",
		BuildType: "test",
		Date:      "2024-05-01",
		Commit:    "abc123",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"msettings 1.2.3-test", "Build: 2024-05-01=abc123"} {
		if !strings.Contains(common.VersionCmdStr, want) {
			t.Errorf("version string %q missing %q", common.VersionCmdStr, want)
		}
	}
}

func TestHelpTemplatesDefined(t *testing.T) {
	if HELP_TEMPL == "" || CMD_HELP_TEMPL == "" || DESCRIPTION == "" {
		t.Fatal("help templates must be defined")
	}
}

func TestConfigCommandSaves(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer
	origOut := configOutput
	configOutput = &out
	defer func() { configOutput = origOut }()

	err := Execute(env.args("config", "--url", "http://host/s.xml", "--interval", "6", "--enable"), BuildArgs{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	cfg := env.loadConfig(t)
	want := settingsync.ScheduleConfig{URL: "http://host/s.xml", IntervalHours: 6, Enabled: true}
	if cfg != want {
		t.Errorf("saved config = %+v, want %+v", cfg, want)
	}
	for _, s := range []string{"http://host/s.xml", "6 hour(s)", "true", env.target, env.target + settingsync.BackupSuffix} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("output missing %q:\n%s", s, out.String())
		}
	}
}

func TestConfigCommandDisableKeepsOtherFields(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t, settingsync.ScheduleConfig{URL: "http://host/a.xml", IntervalHours: 3, Enabled: true})
	origOut := configOutput
	configOutput = &bytes.Buffer{}
	defer func() { configOutput = origOut }()

	if err := Execute(env.args("config", "--disable"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	cfg := env.loadConfig(t)
	if cfg.Enabled || cfg.URL != "http://host/a.xml" || cfg.IntervalHours != 3 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestConfigCommandRejectsBadInterval(t *testing.T) {
	env := newTestEnv(t)
	origOut := configOutput
	configOutput = &bytes.Buffer{}
	defer func() { configOutput = origOut }()

	if err := Execute(env.args("config", "--interval", "0"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(env.paths(t).ConfigFile); !os.IsNotExist(err) {
		t.Errorf("config must not be written, stat err = %v", err)
	}
}

func TestConfigCommandPrintOnly(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer
	origOut := configOutput
	configOutput = &out
	defer func() { configOutput = origOut }()

	if err := Execute(env.args("config"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), settingsync.DefaultURL) {
		t.Errorf("defaults not printed:\n%s", out.String())
	}
	if _, err := os.Stat(env.paths(t).ConfigFile); !os.IsNotExist(err) {
		t.Errorf("printing must not create the config, stat err = %v", err)
	}
}

func TestUpdateCommandWithURL(t *testing.T) {
	env := newTestEnv(t)
	srv := serveSettings(t, "<settings>new</settings>")
	if err := os.MkdirAll(filepath.Dir(env.target), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.target, []byte("<settings>old</settings>"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Execute(env.args("update", "--url", srv.URL+"/s.xml"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, err := os.ReadFile(env.target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "<settings>new</settings>" {
		t.Errorf("target = %q", got)
	}
	backup, err := os.ReadFile(settingsync.BackupPath(env.target))
	if err != nil {
		t.Fatal(err)
	}
	if string(backup) != "<settings>old</settings>" {
		t.Errorf("backup = %q", backup)
	}
}

func TestUpdateCommandUsesSavedURL(t *testing.T) {
	env := newTestEnv(t)
	srv := serveSettings(t, "<settings>saved</settings>")
	env.saveConfig(t, settingsync.ScheduleConfig{URL: srv.URL + "/s.xml", IntervalHours: 10})

	if err := Execute(env.args("update"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got, err := os.ReadFile(env.target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "<settings>saved</settings>" {
		t.Errorf("target = %q", got)
	}
}

func TestUpdateCommandFailureLeavesTarget(t *testing.T) {
	env := newTestEnv(t)
	srv := serveSettings(t, "unused")
	if err := os.MkdirAll(filepath.Dir(env.target), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.target, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Execute(env.args("update", "--url", srv.URL+"/missing"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got, _ := os.ReadFile(env.target)
	if string(got) != "keep" {
		t.Errorf("target = %q", got)
	}
	if _, err := os.Stat(settingsync.BackupPath(env.target)); !os.IsNotExist(err) {
		t.Errorf("no backup expected on a failed fetch, stat err = %v", err)
	}
}

func TestFetchOnceInvalidURL(t *testing.T) {
	newTestEnv(t)
	f, err := settingsync.NewFetcher(nil)
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(t.TempDir(), "settings.xml")
	_, err = fetchOnce(context.Background(), f, settingsync.NewReplacer(nil, nil), "ftp://host/s.xml", target)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Errorf("target must not be created, stat err = %v", statErr)
	}
}

func TestActivateNotRunning(t *testing.T) {
	env := newTestEnv(t)
	if err := Execute(env.args("activate"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if activation.New(env.paths(t).ActivationSignal).Pending() {
		t.Error("no signal should be written without a running instance")
	}
}

func TestActivateSignalsRunningInstance(t *testing.T) {
	env := newTestEnv(t)
	p := env.paths(t)
	lock, err := instance.Acquire(p.LockFile)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if err := Execute(env.args("activate"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !activation.New(p.ActivationSignal).Consume() {
		t.Error("activation signal not written")
	}
}

// TestRunSecondLaunchSignals tests that a launch losing the instance lock
// signals the winner and returns without starting anything.
func TestRunSecondLaunchSignals(t *testing.T) {
	env := newTestEnv(t)
	p := env.paths(t)
	lock, err := instance.Acquire(p.LockFile)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	called := false
	origUI := runInterface
	runInterface = func(context.Context, *engine.Engine, ui.Activator, <-chan struct{}) error {
		called = true
		return nil
	}
	defer func() { runInterface = origUI }()

	if err := Execute(env.args(""), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called {
		t.Error("losing launch must not open the interface")
	}
	ch := activation.New(p.ActivationSignal)
	if !ch.Consume() {
		t.Fatal("losing launch must signal the running instance")
	}
	if ch.Consume() {
		t.Error("signal must be consumed once")
	}
}

// TestRunInterfaceUpdatesTarget runs the full startup path with the
// interface replaced by a function that triggers one manual update.
func TestRunInterfaceUpdatesTarget(t *testing.T) {
	env := newTestEnv(t)
	srv := serveSettings(t, "<settings>run</settings>")
	env.saveConfig(t, settingsync.ScheduleConfig{URL: srv.URL + "/s.xml", IntervalHours: 10})

	var got engine.View
	origUI := runInterface
	runInterface = func(ctx context.Context, eng *engine.Engine, act ui.Activator, _ <-chan struct{}) error {
		if act == nil {
			t.Error("activator not wired")
		}
		if err := eng.UpdateNow(); err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := eng.Wait(wctx); err != nil {
			return err
		}
		got = eng.Snapshot()
		return nil
	}
	defer func() { runInterface = origUI }()

	if err := Execute(env.args("run"), BuildArgs{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(env.target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<settings>run</settings>" {
		t.Errorf("target = %q", data)
	}
	if len(got.History) != 1 || !got.History[0].Success() {
		t.Errorf("history = %v", got.History)
	}
	if got.Status != engine.StatusManualFinished {
		t.Errorf("status = %q", got.Status)
	}

	p := env.paths(t)
	logData, err := os.ReadFile(p.LogFile)
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(logData), "MSettings started") {
		t.Errorf("log missing startup line:\n%s", logData)
	}

	// The lock is released on exit.
	lock, err := instance.Acquire(p.LockFile)
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	lock.Release()
}

type fakeHeadlessEngine struct {
	mu     sync.Mutex
	view   engine.View
	starts int
}

func (f *fakeHeadlessEngine) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeHeadlessEngine) Snapshot() engine.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeHeadlessEngine) Changes() <-chan struct{} {
	return nil
}

type countingActivator struct {
	mu      sync.Mutex
	pending int
}

func (c *countingActivator) Consume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending > 0 {
		c.pending--
		return true
	}
	return false
}

func TestRunHeadless(t *testing.T) {
	origPoll := headlessPoll
	headlessPoll = 5 * time.Millisecond
	defer func() { headlessPoll = origPoll }()

	tests := []struct {
		name       string
		enabled    bool
		wantStarts int
	}{
		{"enabled schedule starts", true, 1},
		{"disabled schedule waits", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeHeadlessEngine{view: engine.View{Config: settingsync.ScheduleConfig{
				URL:           "http://host/s.xml",
				IntervalHours: 2,
				Enabled:       tt.enabled,
			}}}
			act := &countingActivator{pending: 1}
			l := logger.NewMockLogger()

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- runHeadless(ctx, eng, act, nil, l) }()

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				act.mu.Lock()
				p := act.pending
				act.mu.Unlock()
				if p == 0 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			cancel()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("runHeadless: %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("runHeadless did not return after cancel")
			}

			if eng.starts != tt.wantStarts {
				t.Errorf("starts = %d, want %d", eng.starts, tt.wantStarts)
			}
			found := false
			for _, msg := range l.InfoCalls() {
				if strings.Contains(msg, "Activation requested") {
					found = true
				}
			}
			if !found {
				t.Errorf("activation not logged: %v", l.InfoCalls())
			}
		})
	}
}

func TestRunHeadlessWakeClosed(t *testing.T) {
	origPoll := headlessPoll
	headlessPoll = time.Hour
	defer func() { headlessPoll = origPoll }()

	wake := make(chan struct{})
	close(wake)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := runHeadless(ctx, &fakeHeadlessEngine{}, nil, wake, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
}

func waitSchedulerState(t *testing.T, eng *engine.Engine, want scheduler.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for eng.SchedulerState() != want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := eng.SchedulerState(); got != want {
		t.Fatalf("scheduler state = %v, want %v", got, want)
	}
}

// TestRunHeadlessArmsOnConfigChange tests that enabling the schedule through
// a config edit arms a headless instance, also after an earlier disable.
func TestRunHeadlessArmsOnConfigChange(t *testing.T) {
	origPoll := headlessPoll
	headlessPoll = time.Hour
	defer func() { headlessPoll = origPoll }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<settings/>"))
	}))
	defer srv.Close()

	disabled := settingsync.ScheduleConfig{URL: srv.URL, IntervalHours: 1}
	eng, err := engine.New(disabled, engine.Options{
		Target:    filepath.Join(t.TempDir(), "settings.xml"),
		Scheduler: scheduler.Config{Tick: 5 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	l := logger.NewMockLogger()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runHeadless(ctx, eng, nil, nil, l) }()
	defer func() {
		cancel()
		<-done
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = eng.Close(closeCtx)
	}()

	enabled := disabled
	enabled.Enabled = true
	if err := eng.Apply(enabled); err != nil {
		t.Fatal(err)
	}
	waitSchedulerState(t, eng, scheduler.Running)

	if err := eng.Apply(disabled); err != nil {
		t.Fatal(err)
	}
	waitSchedulerState(t, eng, scheduler.Stopped)

	if err := eng.Apply(enabled); err != nil {
		t.Fatal(err)
	}
	waitSchedulerState(t, eng, scheduler.Running)

	starts := 0
	for _, msg := range l.InfoCalls() {
		if strings.Contains(msg, "Auto update started") {
			starts++
		}
	}
	if starts != 2 {
		t.Errorf("starts logged = %d, want 2: %v", starts, l.InfoCalls())
	}
}
