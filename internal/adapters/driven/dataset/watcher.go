package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the dataset when its file changes.
type Watcher struct {
	loader   *Loader
	debounce time.Duration
	// onReload is called after every reload attempt.
	onReload func(count int, err error)
}

// NewWatcher creates a watcher for the loader's file.
func NewWatcher(loader *Loader, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{loader: loader, debounce: debounce}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// atomic saves (write temp file, rename over) are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	path, err := filepath.Abs(w.loader.Path())
	if err != nil {
		return fmt.Errorf("resolve dataset path: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logger.Debug("watching %s", path)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if relevant(event, path) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("dataset watcher: %v", err)

		case <-timer.C:
			count, err := w.loader.Reload(ctx)
			if err != nil {
				logger.Warn("dataset reload failed, keeping previous data: %v", err)
			}
			if w.onReload != nil {
				w.onReload(count, err)
			}
		}
	}
}

// relevant reports whether event touches the dataset file with a change
// that can alter its contents.
func relevant(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
