package container

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/depthcam/logging"
)

// ReloadFunc is called after every reload attempt a Watcher makes, with the reload error.
type ReloadFunc func(c DataContainer, err error)

// Watcher reloads a container whenever its file is written, created or renamed into place.
type Watcher struct {
	watcher *fsnotify.Watcher
	workers *goutils.StoppableWorkers
}

// NewWatcher starts watching the file of c. The parent directory is watched so that editors that
// replace the file atomically are noticed.
func NewWatcher(c DataContainer, logger logging.Logger, onReload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	target := filepath.Clean(c.FilePath())
	if err := fw.Add(filepath.Dir(target)); err != nil {
		goutils.UncheckedError(fw.Close())
		return nil, errors.Wrapf(err, "cannot watch %q", target)
	}

	w := &Watcher{watcher: fw}
	w.workers = goutils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warnw("file watch error", "path", target, "error", err)
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				err := c.Reload()
				if err != nil {
					logger.Warnw("reload failed", "path", target, "error", err)
				} else {
					logger.Infow("reloaded", "path", target)
				}
				if onReload != nil {
					onReload(c, err)
				}
			}
		}
	})
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.workers.Stop()
	return w.watcher.Close()
}
