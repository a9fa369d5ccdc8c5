package backendstub

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchDataDir logs edits made directly to the YAML data directory while
// the stub is running, so hand-edited fixtures are visible in the server
// log. Repositories read from disk on every request, so no reload step is
// needed; the watch is purely informational.
func WatchDataDir(ctx context.Context, baseDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(baseDir); err != nil {
		return err
	}
	// Watch existing entity subdirectories too; fsnotify is not recursive.
	entries, err := os.ReadDir(baseDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				if err := watcher.Add(filepath.Join(baseDir, e.Name())); err != nil {
					slog.Warn("failed to watch data subdirectory", "dir", e.Name(), "error", err)
				}
			}
		}
	}

	slog.Info("watching data directory", "dir", baseDir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						slog.Warn("failed to watch new data subdirectory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) {
				slog.Debug("data file changed", "op", event.Op.String(), "path", event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("data directory watch error", "error", err)
		}
	}
}
