package infra

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// BuildWatcher implements domain.BuildChecker. It keeps the "engine built"
// flag fresh by watching the engine output directory with fsnotify instead
// of statting the binary on every status request. When the watcher cannot
// be started (directory missing, inotify exhausted) it degrades to a stat
// per call.
type BuildWatcher struct {
	execPath string
	built    atomic.Bool
	watching atomic.Bool
	logger   *zap.Logger
}

// NewBuildWatcher creates a checker for the given engine executable path.
func NewBuildWatcher(execPath string, logger *zap.Logger) *BuildWatcher {
	w := &BuildWatcher{execPath: execPath, logger: logger}
	w.built.Store(w.stat())
	return w
}

// Built reports whether the engine binary is present on disk.
func (w *BuildWatcher) Built() bool {
	if w.watching.Load() {
		return w.built.Load()
	}
	return w.stat()
}

// Watch observes the engine output directory until the context is canceled.
// Runs in its own goroutine; errors only disable the cached mode.
func (w *BuildWatcher) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("build watcher unavailable, falling back to stat", zap.Error(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.execPath)
	if err := watcher.Add(dir); err != nil {
		w.logger.Debug("engine output directory not watchable", zap.String("dir", dir), zap.Error(err))
		return
	}

	w.watching.Store(true)
	defer w.watching.Store(false)
	w.built.Store(w.stat())

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name == w.execPath {
				w.built.Store(w.stat())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("build watcher error", zap.Error(err))
		}
	}
}

func (w *BuildWatcher) stat() bool {
	info, err := os.Stat(w.execPath)
	return err == nil && !info.IsDir()
}

// Ensure BuildWatcher implements domain.BuildChecker.
var _ domain.BuildChecker = (*BuildWatcher)(nil)
