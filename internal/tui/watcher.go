package tui

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/plancraft/internal/domain"
)

// CheckpointWatcher reports checkpoint files landing in a workspace's
// checkpoints directory. Temporary files written before the atomic rename
// are ignored.
type CheckpointWatcher struct {
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	changes chan domain.CheckpointID
	done    chan struct{}
}

// WatchDir starts watching dir. Call Close to release the watcher.
func WatchDir(dir string, logger *slog.Logger) (*CheckpointWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &CheckpointWatcher{
		fsw:     fsw,
		logger:  logger,
		changes: make(chan domain.CheckpointID, 16),
		done:    make(chan struct{}),
	}
	go w.loop()
	logger.Debug("watching checkpoints", "dir", dir)
	return w, nil
}

// Changes delivers the id of every new checkpoint. It is closed by Close.
func (w *CheckpointWatcher) Changes() <-chan domain.CheckpointID {
	return w.changes
}

// Close stops the watcher.
func (w *CheckpointWatcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *CheckpointWatcher) loop() {
	defer close(w.done)
	defer close(w.changes)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			id, ok := checkpointFromEvent(ev)
			if !ok {
				continue
			}
			select {
			case w.changes <- id:
			default:
				// reload already queued
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("checkpoint watcher error", "error", err)
		}
	}
}

func checkpointFromEvent(ev fsnotify.Event) (domain.CheckpointID, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return "", false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	id, ok := strings.CutSuffix(name, ".json")
	if !ok || id == "" {
		return "", false
	}
	return domain.CheckpointID(id), true
}

// Poll reports changes of the newest checkpoint id by calling latest every
// interval. It serves backends without a local directory to watch. The
// channel is closed when ctx is done.
func Poll(ctx context.Context, interval time.Duration, latest func(context.Context) (domain.CheckpointID, error)) <-chan domain.CheckpointID {
	out := make(chan domain.CheckpointID, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last domain.CheckpointID
		if id, err := latest(ctx); err == nil {
			last = id
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				id, err := latest(ctx)
				if err != nil || id == last {
					continue
				}
				last = id
				select {
				case out <- id:
				default:
				}
			}
		}
	}()
	return out
}
