// Package configwatcher live-reloads run tunables from the distsolve config
// file. It watches the file's directory, re-reads the file after a debounce
// delay, and hands changed values to callbacks.
//
// Only max_iterations and log_level are reloaded. Everything else in the
// file shapes connections or the partition grid and is fixed for the run.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/distsolve/internal/cliconfig"
	"github.com/bft-labs/distsolve/pkg/log"
)

// Config holds configuration options for the config watcher.
type Config struct {
	// Path is the TOML file to watch. Required.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnMaxIterations receives a changed iteration cap. 0 means unlimited.
	OnMaxIterations func(n int)

	// OnLogLevel receives a changed log level name.
	OnLogLevel func(level string) error

	Logger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{DebounceDelay: 100 * time.Millisecond}
}

// Tunables is the reloadable subset of the config file.
type Tunables struct {
	MaxIterations int
	LogLevel      string
}

// Plugin watches one config file.
type Plugin struct {
	cfg Config

	mu       sync.Mutex
	current  Tunables
	debounce *time.Timer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a watcher for cfg.Path.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	return &Plugin{cfg: cfg}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Start records the current file contents as the baseline and begins
// watching. Values already in the file are not re-applied.
func (p *Plugin) Start(ctx context.Context) error {
	if p.cfg.Path == "" {
		return fmt.Errorf("configwatcher: path is required")
	}
	if cliconfig.FileExists(p.cfg.Path) {
		t, err := load(p.cfg.Path)
		if err != nil {
			return fmt.Errorf("configwatcher: %w", err)
		}
		p.mu.Lock()
		p.current = t
		p.mu.Unlock()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("configwatcher: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.cfg.Path)); err != nil {
		watcher.Close()
		return fmt.Errorf("configwatcher: watch %s: %w", filepath.Dir(p.cfg.Path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.cfg.Logger.Info("config watcher started", log.String("path", p.cfg.Path))
	return nil
}

// Shutdown stops the watcher and waits for the loop to exit.
func (p *Plugin) Shutdown(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Current returns the last applied tunables.
func (p *Plugin) Current() Tunables {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.cfg.Path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.cfg.Logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.cfg.DebounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload re-reads the file and applies whatever changed. A file that
// fails to parse is skipped; the previous values stay in force.
func (p *Plugin) reload() {
	next, err := load(p.cfg.Path)
	if err != nil {
		p.cfg.Logger.Warn("config reload skipped", log.String("path", p.cfg.Path), log.Err(err))
		return
	}

	p.mu.Lock()
	prev := p.current
	p.mu.Unlock()

	if next.MaxIterations != prev.MaxIterations && p.cfg.OnMaxIterations != nil {
		p.cfg.OnMaxIterations(next.MaxIterations)
		p.cfg.Logger.Info("max iterations reloaded", log.Int("from", prev.MaxIterations), log.Int("to", next.MaxIterations))
	}
	if next.LogLevel != prev.LogLevel && next.LogLevel != "" && p.cfg.OnLogLevel != nil {
		if err := p.cfg.OnLogLevel(next.LogLevel); err != nil {
			p.cfg.Logger.Warn("log level rejected", log.String("level", next.LogLevel), log.Err(err))
			next.LogLevel = prev.LogLevel
		} else {
			p.cfg.Logger.Info("log level reloaded", log.String("from", prev.LogLevel), log.String("to", next.LogLevel))
		}
	}

	p.mu.Lock()
	p.current = next
	p.mu.Unlock()
}

func load(path string) (Tunables, error) {
	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		return Tunables{}, err
	}
	return Tunables{MaxIterations: fc.MaxIterations, LogLevel: fc.LogLevel}, nil
}
