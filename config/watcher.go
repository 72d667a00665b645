package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/viam-labs/keydrive/logging"
)

// settleTime is how long a config file must be left alone before it is read again. Editors tend
// to write a file in several steps.
const settleTime = 200 * time.Millisecond

// A Watcher reads a config file again every time it changes.
type Watcher struct {
	path     string
	logger   logging.Logger
	configCh chan *Config
	watcher  *fsnotify.Watcher
	reload   func(f func())

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewWatcher starts watching the config file at path. The directory is watched rather than the
// file so that a file replaced by rename is still followed.
func NewWatcher(ctx context.Context, path string, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "error creating config watcher")
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "error watching %q", path), fsw.Close())
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:      filepath.Clean(path),
		logger:    logger,
		configCh:  make(chan *Config),
		watcher:   fsw,
		reload:    debounce.New(settleTime),
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	w.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(w.watch, w.activeBackgroundWorkers.Done)
	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.cancelCtx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload(w.readAndSend)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorw("error watching config", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) readAndSend() {
	if w.cancelCtx.Err() != nil {
		return
	}
	cfg, err := Read(w.cancelCtx, w.path, w.logger)
	if err != nil {
		w.logger.Errorw("error reading changed config, keeping the old one", "path", w.path, "error", err)
		return
	}
	select {
	case <-w.cancelCtx.Done():
	case w.configCh <- cfg:
	}
}

// Config returns a channel that yields the config each time the file changes and still validates.
func (w *Watcher) Config() <-chan *Config {
	return w.configCh
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.activeBackgroundWorkers.Wait()
	return err
}
