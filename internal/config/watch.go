package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"drinkup/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const planDebounce = 200 * time.Millisecond

// PlanWatcher reloads the reminder plan file when it changes on disk.
type PlanWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewPlanWatcher starts watching path. The parent directory is watched so
// editors that replace the file on save are seen too.
func NewPlanWatcher(path string, logger *zap.Logger) (*PlanWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return &PlanWatcher{path: filepath.Clean(path), watcher: w, logger: logging.OrNop(logger)}, nil
}

// Run calls onChange with each valid new version of the file until ctx is
// done. Files that fail to load are logged and skipped. The watcher is
// closed when Run returns.
func (pw *PlanWatcher) Run(ctx context.Context, onChange func(*ReminderPlan)) error {
	defer pw.watcher.Close()

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != pw.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// Saves often arrive as several events; reload once they settle.
			fire = time.After(planDebounce)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return nil
			}
			pw.logger.Warn("reminder config watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			plan, err := LoadReminderPlan(pw.path)
			if err != nil {
				pw.logger.Warn("ignoring invalid reminder config", zap.Error(err))
				continue
			}
			pw.logger.Info("reminder config changed", zap.String("path", pw.path))
			onChange(plan)
		}
	}
}
