package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay debounces bursts of filesystem events into one reload.
const reloadDelay = 500 * time.Millisecond

// Watcher reloads definitions when watched CUE sources change.
type Watcher struct {
	logger  zerolog.Logger
	loader  *Loader
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given loader.
func NewWatcher(loader *Loader, logger zerolog.Logger) *Watcher {
	return &Watcher{
		logger: logger.With().Str("component", "definition-watcher").Logger(),
		loader: loader,
	}
}

// Watch starts watching paths and calls reloadFn with a fresh load result
// after each change. It returns once watching is established; reloads run in
// the background until ctx is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context, paths []string, reloadFn func(*LoadResult) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		if info.IsDir() {
			if err := w.watchDirectory(path); err != nil {
				w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else {
			if err := watcher.Add(path); err != nil {
				w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
			}
		}
	}

	go w.processEvents(ctx, paths, reloadFn)

	w.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching definition paths")

	return nil
}

// watchDirectory adds a directory tree to the watcher.
func (w *Watcher) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// processEvents drains filesystem events and triggers debounced reloads.
func (w *Watcher) processEvents(ctx context.Context, paths []string, reloadFn func(*LoadResult) error) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if w.watcher != nil {
				_ = w.watcher.Close()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".cue") {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Definition file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if err := w.reload(ctx, paths, reloadFn); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload definitions")
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// reload re-evaluates every watched path and hands the result to reloadFn.
func (w *Watcher) reload(ctx context.Context, paths []string, reloadFn func(*LoadResult) error) error {
	result, err := w.loader.Load(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to reload definitions: %w", err)
	}

	if err := reloadFn(result); err != nil {
		return fmt.Errorf("failed to apply reloaded definitions: %w", err)
	}

	w.logger.Info().
		Int("definitions", len(result.Raw)).
		Int("errors", len(result.Errors)).
		Msg("Definitions reloaded")

	return nil
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
