package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/refkeeper/pkg/log"
)

// Watcher monitors the daemon's config file and feeds the reloaded
// endpoint set back through the reload callback. Editors and config
// management tools tend to rewrite files in bursts, so changes are
// debounced before reloading.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   log.Logger
	reload   func(endpoints []string)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, debounce time.Duration, logger log.Logger, reload func([]string)) *Watcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		logger:   logger,
		reload:   reload,
	}
}

// Run watches the config file's directory until the context is
// cancelled. Watching the directory rather than the file survives the
// rename-and-replace dance most editors do.
func (w *Watcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("config watcher: failed to create watcher", log.Err(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		w.logger.Error("config watcher: failed to watch directory",
			log.String("dir", dir),
			log.Err(err),
		)
		return
	}

	w.logger.Info("watching config file", log.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.doReload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) doReload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		// Keep the current endpoint set on a bad read; the next write
		// will retrigger.
		w.logger.Warn("config reload failed, keeping current endpoints",
			log.String("path", w.path),
			log.Err(err),
		)
		return
	}
	w.logger.Info("config reloaded",
		log.String("path", w.path),
		log.Int("endpoints", len(fc.Endpoints)),
	)
	w.reload(fc.Endpoints)
}
