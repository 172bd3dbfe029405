// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 500 * time.Millisecond

// Watcher re-resolves a configuration file through a Loader whenever the file
// or any local file in its parent chain changes. Bursts of events are
// debounced into one reload. A reload that fails is logged and not delivered.
type Watcher struct {
	path     string
	loader   *Loader
	onChange func(*Config)
	logger   *zap.Logger

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stop     sync.Once
	callback sync.Mutex // held while onChange runs

	// guarded by mu
	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]struct{}
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, loader *Loader, onChange func(*Config), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		loader:   loader,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
}

// Start begins watching. Directories are watched rather than files, since
// editors usually save by replacing the file.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	w.mu.Lock()
	err = w.track(append(w.loader.Files(), w.path))
	w.mu.Unlock()
	if err != nil {
		fsw.Close()
		return err
	}

	go w.run(ctx)
	w.logger.Info("config watcher started", zap.String("path", w.path))
	return nil
}

// Stop shuts down the watcher. It is safe to call more than once. Once it
// returns, onChange is not called again.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		close(w.done)
		if w.fsw != nil {
			w.fsw.Close()
		}
		// Wait out a callback already in progress.
		w.callback.Lock()
		w.callback.Unlock()
	})
}

// Files returns the files currently watched, sorted. Only for logging and tests.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sortedSet(w.files)
}

// track adds files to the watched set, registering directories not seen yet.
// Caller holds mu.
func (w *Watcher) track(files []string) error {
	for _, f := range files {
		f = filepath.Clean(f)
		w.files[f] = struct{}{}
		dir := filepath.Dir(f)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = struct{}{}
	}
	return nil
}

func (w *Watcher) watched(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[filepath.Clean(name)]
	return ok
}

func (w *Watcher) run(ctx context.Context) {
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !w.watched(ev.Name) {
				continue
			}
			w.logger.Debug("config file changed",
				zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(watchDebounce, func() { w.reload(ctx) })

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) stopped(ctx context.Context) bool {
	select {
	case <-w.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// reload runs on the debounce timer, which may fire after Stop.
func (w *Watcher) reload(ctx context.Context) {
	if w.stopped(ctx) {
		return
	}
	cfg, files, ok := w.resolve(ctx)
	if !ok {
		return
	}

	w.callback.Lock()
	defer w.callback.Unlock()
	if w.stopped(ctx) {
		return
	}
	w.logger.Info("config reloaded", zap.String("path", w.path), zap.Int("files", files))
	w.onChange(cfg)
}

func (w *Watcher) resolve(ctx context.Context) (*Config, int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.loader.Clear()
	cfg, err := w.loader.Resolve(ctx, w.path)
	if err != nil {
		w.logger.Error("config reload failed", zap.String("path", w.path), zap.Error(err))
		return nil, 0, false
	}
	// A parent may have been added or renamed in the new version.
	if err := w.track(w.loader.Files()); err != nil {
		w.logger.Warn("watch parent configuration", zap.Error(err))
	}
	return cfg, len(w.files), true
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
