package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"inventrack/internal/domain"
)

// debounceDelay coalesces editor write bursts into a single reload.
var debounceDelay = 200 * time.Millisecond

// newWatcher creates an fsnotify watcher; tests may replace it to inject errors.
var newWatcher = fsnotify.NewWatcher

// Watch reloads path whenever it is written or recreated and passes the new
// config to onChange. Invalid files are logged and ignored. Watch returns
// once the watcher is running; it stops when ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*domain.Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := newWatcher()
	if err != nil {
		return err
	}
	// Watch the directory so atomic renames by editors are seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}
	target := filepath.Base(path)

	go func() {
		defer w.Close()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceDelay, func() {
					cfg, err := Load(path)
					if err != nil {
						logger.Warn("config reload failed", "path", path, "error", err)
						return
					}
					logger.Info("config reloaded", "path", path)
					onChange(cfg)
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
