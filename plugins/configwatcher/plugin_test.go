package configwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func startPlugin(t *testing.T, cfg Config) *Plugin {
	t.Helper()
	p := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	return p
}

func TestPlugin_RequiresPath(t *testing.T) {
	if err := New(DefaultConfig()).Start(context.Background()); err == nil {
		t.Error("Start without a path should fail")
	}
}

func TestPlugin_BaselineNotApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "max_iterations = 9\nlog_level = \"warn\"\n")

	called := make(chan int, 1)
	p := startPlugin(t, Config{
		Path:            path,
		DebounceDelay:   10 * time.Millisecond,
		OnMaxIterations: func(n int) { called <- n },
	})

	if got := p.Current(); got.MaxIterations != 9 || got.LogLevel != "warn" {
		t.Errorf("Current() = %+v, want baseline from file", got)
	}
	select {
	case n := <-called:
		t.Errorf("baseline re-applied: OnMaxIterations(%d)", n)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPlugin_ReloadsChangedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "max_iterations = 5\nlog_level = \"info\"\n")

	iters := make(chan int, 4)
	levels := make(chan string, 4)
	p := startPlugin(t, Config{
		Path:            path,
		DebounceDelay:   20 * time.Millisecond,
		OnMaxIterations: func(n int) { iters <- n },
		OnLogLevel:      func(l string) error { levels <- l; return nil },
	})

	writeConfig(t, path, "max_iterations = 50\nlog_level = \"debug\"\n")

	select {
	case n := <-iters:
		if n != 50 {
			t.Errorf("OnMaxIterations(%d), want 50", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for max_iterations reload")
	}
	select {
	case l := <-levels:
		if l != "debug" {
			t.Errorf("OnLogLevel(%q), want debug", l)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for log_level reload")
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Current().MaxIterations != 50 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := p.Current(); got.MaxIterations != 50 || got.LogLevel != "debug" {
		t.Errorf("Current() = %+v after reload", got)
	}
}

func TestPlugin_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "max_iterations = 1\n")

	iters := make(chan int, 1)
	startPlugin(t, Config{
		Path:            path,
		DebounceDelay:   10 * time.Millisecond,
		OnMaxIterations: func(n int) { iters <- n },
	})

	writeConfig(t, filepath.Join(dir, "other.toml"), "max_iterations = 77\n")

	select {
	case n := <-iters:
		t.Errorf("reload triggered by unrelated file: OnMaxIterations(%d)", n)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPlugin_InvalidFileKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "max_iterations = 3\n")

	iters := make(chan int, 2)
	p := startPlugin(t, Config{
		Path:            path,
		DebounceDelay:   10 * time.Millisecond,
		OnMaxIterations: func(n int) { iters <- n },
	})

	writeConfig(t, path, "max_iterations = = broken\n")
	time.Sleep(150 * time.Millisecond)

	if got := p.Current().MaxIterations; got != 3 {
		t.Errorf("MaxIterations = %d after bad reload, want 3", got)
	}
	select {
	case n := <-iters:
		t.Errorf("bad file applied: OnMaxIterations(%d)", n)
	default:
	}
}

func TestPlugin_RejectedLogLevelNotKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "log_level = \"info\"\n")

	levels := make(chan string, 4)
	p := startPlugin(t, Config{
		Path:          path,
		DebounceDelay: 10 * time.Millisecond,
		OnLogLevel: func(l string) error {
			levels <- l
			if l == "loud" {
				return errors.New("unknown level")
			}
			return nil
		},
	})

	writeConfig(t, path, "log_level = \"loud\"\n")
	select {
	case <-levels:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for log_level reload")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.Current().LogLevel == "info" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("LogLevel = %q, rejected level should not stick", p.Current().LogLevel)
}
