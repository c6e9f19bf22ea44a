package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-reads the config file when it changes on disk and hands the
// parsed result to a callback. Invalid intermediate states (editors often
// write partial files) are logged and skipped; the previous config stays
// in force.
type Watcher struct {
	path     string
	onChange func(Config)
	fw       *fsnotify.Watcher
}

// NewWatcher creates a watcher for one config file. onChange runs on the
// watcher goroutine; callers needing serialization must provide it.
func NewWatcher(path string, onChange func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{path: path, onChange: onChange, fw: fw}, nil
}

// Run blocks delivering reload callbacks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				slog.Warn("config reload skipped", "path", w.path, "error", err)
				continue
			}
			slog.Info("config reloaded", "path", w.path, "people", len(cfg.People))
			w.onChange(cfg)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error { return w.fw.Close() }
