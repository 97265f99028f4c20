package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay groups the bursts of events editors produce on save.
const reloadDelay = 200 * time.Millisecond

// Watch loads dir and reloads it whenever a catalogue file in it changes,
// until ctx is done. A failed reload keeps the previous programs.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	if err := r.Load(dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isCatalogue(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			r.logger.Debug("catalogue changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
			timer.Reset(reloadDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			if err := r.Load(dir); err != nil {
				r.logger.Error("reload failed, keeping previous programs", zap.String("dir", dir), zap.Error(err))
			}
		}
	}
}
