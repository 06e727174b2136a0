package source

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the local source files in paths and calls onChange with the
// changed path each time one is written or recreated. It runs until ctx is
// cancelled.
//
// The parent directories are watched rather than the files themselves so that
// editors and sync tools that replace a file by rename are still observed.
func Watch(ctx context.Context, paths []string, onChange func(path string), logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	logger.Info("watching local sources", "paths", paths)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !wanted[abs] {
				continue
			}
			logger.Debug("local source changed", "path", abs, "op", event.Op.String())
			onChange(abs)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("source watcher error", "error", err)
		}
	}
}
