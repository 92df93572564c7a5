package predictor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"trafficcast/monitoring"
)

// WatchArtifact reports when the model file is replaced or removed after the
// service loaded it. The running service keeps its loaded model; the event
// only sets the stale gauge and logs, so an operator knows a restart is due.
// onChange, when non-nil, is called once per relevant event.
func WatchArtifact(ctx context.Context, path string, logger *zap.Logger, metrics *monitoring.Metrics, onChange func(fsnotify.Event)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("artifact watcher: %w", err)
	}
	// the artifact is swapped in by rename, so watch the directory
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if metrics != nil {
					metrics.ArtifactStale.Set(1)
				}
				logger.Warn("model artifact changed on disk; restart to load it",
					zap.String("path", path), zap.String("op", ev.Op.String()))
				if onChange != nil {
					onChange(ev)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("artifact watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
