package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reAddDelay gives editors that save by delete-then-recreate time to put
// the new file in place before the watch is re-established.
const reAddDelay = 50 * time.Millisecond

// Watch monitors path and calls onChange with the newly loaded Config
// whenever a rewrite changes the fields the running pipeline consumes
// (harvest sources, fast count, schedule interval). Rewrites that leave
// those untouched are ignored, so touching the file or editing unrelated
// sections never churns the orchestrator. Watch runs until ctx is
// cancelled.
//
// A reload that fails to parse or validate is logged and dropped; the
// previous config stays active.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	// Baseline for change detection. A file that fails to load at start
	// has no baseline, so the first good reload always fires.
	last, err := Load(path)
	if err != nil {
		last = nil
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Atomic saves replace the inode: the watch sees Remove or
			// Rename, then the new file appears under the same path.
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				time.Sleep(reAddDelay)
				if err := watcher.Add(path); err != nil {
					slog.Warn("config: file gone, waiting for recreate",
						"path", path, "err", err)
					continue
				}
			} else if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}

			if last != nil && !pipelineFieldsChanged(&last.Collector, &cfg.Collector) {
				slog.Debug("config: rewrite leaves pipeline fields unchanged", "path", path)
				last = cfg
				continue
			}
			last = cfg

			slog.Info("config: reloaded",
				"path", path,
				"sources", len(cfg.Collector.Sources),
				"fast_count", cfg.Collector.FastCount)
			onChange(cfg)

			// The inode may have been replaced even on a plain Write.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// pipelineFieldsChanged reports whether the fields consumed by the
// running orchestrator differ between two configs.
func pipelineFieldsChanged(prev, next *CollectorConfig) bool {
	if prev.FastCount != next.FastCount {
		return true
	}
	if prev.ScheduleInterval != next.ScheduleInterval {
		return true
	}
	if len(prev.Sources) != len(next.Sources) {
		return true
	}
	for i := range prev.Sources {
		if prev.Sources[i] != next.Sources[i] {
			return true
		}
	}
	return false
}
