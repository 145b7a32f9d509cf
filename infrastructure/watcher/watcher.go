// Package watcher reloads the index when files in the repository working
// copies change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc rebuilds the index.
type ReloadFunc func(ctx context.Context) error

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Reloads       int
	Errors        int
	LastEventPath string
	LastReload    time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the trees must stay quiet before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// Watcher watches every directory of the repository roots and triggers one
// reload per burst of changes. Hidden entries, such as .git, are neither
// watched nor reported.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	roots    []string
	reload   ReloadFunc
	debounce time.Duration
	logger   *zap.Logger

	pending   bool
	lastEvent time.Time
	stats     Stats

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a Watcher for roots. Nothing is watched until Start.
func New(roots []string, reload ReloadFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		roots:    roots,
		reload:   reload,
		debounce: 500 * time.Millisecond,
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start registers the watches and processes events in the background until
// ctx is cancelled or Stop is called. A root that cannot be watched is an
// error; directories below it are watched on a best-effort basis.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.fsw.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		n := w.addTree(root)
		w.logger.Info("watching repository", zap.String("root", root), zap.Int("directories", n+1))
	}

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

// addTree watches the non-hidden directories below dir and returns how many
// were added.
func (w *Watcher) addTree(dir string) int {
	n := 0
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || p == dir {
			return nil
		}
		if hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", p), zap.Error(err))
			return nil
		}
		n++
		return nil
	})
	return n
}

// Stop ends event processing and releases the watches. It is safe to call
// more than once, and without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("closing file watcher", zap.Error(err))
	}
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := max(w.debounce/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if w.ignored(event.Name) || event.Op == fsnotify.Chmod {
		return
	}
	// New directories, such as a freshly added task or data drop, are
	// watched along with anything created inside them before the watch.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("cannot watch directory", zap.String("dir", event.Name), zap.Error(err))
			}
			w.addTree(event.Name)
		}
	}
	w.logger.Debug("file changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = true
	w.lastEvent = time.Now()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
}

// flush reloads once the trees have been quiet for the debounce period.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if !w.pending || time.Since(w.lastEvent) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	err := w.reload(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.stats.Errors++
		w.logger.Error("reload after file change failed", zap.Error(err))
		return
	}
	w.stats.Reloads++
	w.stats.LastReload = time.Now()
}

// ignored reports whether p lies in a hidden entry below one of the roots.
func (w *Watcher) ignored(p string) bool {
	rel, ok := w.relative(p)
	if !ok {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if hidden(part) {
			return true
		}
	}
	return false
}

func (w *Watcher) relative(p string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, p)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return rel, true
		}
	}
	return "", false
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
