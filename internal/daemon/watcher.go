package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
)

// configWatcher monitors the configuration file and triggers reloads.
// Events are debounced because editors produce bursts of writes.
type configWatcher struct {
	configPath string
	onChange   func()
	watcher    *fsnotify.Watcher
	stopChan   chan struct{}
	debounce   time.Duration
}

func newConfigWatcher(configPath string, onChange func()) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	// Watch the directory; watching the file directly breaks on
	// rename-based saves.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &configWatcher{
		configPath: absPath,
		onChange:   onChange,
		watcher:    watcher,
		stopChan:   make(chan struct{}),
		debounce:   2 * time.Second,
	}, nil
}

// Start begins monitoring in the background.
func (cw *configWatcher) Start(ctx context.Context) {
	slog.Info("Watching configuration file", logfields.Path(cw.configPath))
	go cw.loop(ctx)
}

// Stop stops the watcher.
func (cw *configWatcher) Stop() {
	close(cw.stopChan)
	if err := cw.watcher.Close(); err != nil {
		slog.Warn("Error closing file watcher", logfields.Error(err))
	}
}

func (cw *configWatcher) loop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounce, cw.onChange)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", logfields.Error(err))
		}
	}
}
