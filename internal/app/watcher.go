package app

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounceMs   = 200
	defaultPollInterval = 30 * time.Second
)

// Reloader re-reads its state from disk. Implemented by *AllowList.
type Reloader interface {
	Reload() error
}

// RoleFileWatcher reloads allow-lists when an operator edits their files by hand.
// Writes made by the lists themselves also fire, which just reloads what was written.
// If fsnotify fails to initialize, it falls back to polling modification times.
type RoleFileWatcher struct {
	files        map[string]Reloader // cleaned absolute path -> list
	logger       *log.Logger
	debounceMs   int
	pollInterval time.Duration

	mu       sync.Mutex
	timers   map[string]*time.Timer
	modTimes map[string]time.Time
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatcherOption configures the watcher.
type WatcherOption func(*RoleFileWatcher)

// WithWatchPollInterval sets the fallback poll interval.
func WithWatchPollInterval(d time.Duration) WatcherOption {
	return func(w *RoleFileWatcher) { w.pollInterval = d }
}

// WithDebounce sets how long to wait after the last event before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *RoleFileWatcher) { w.debounceMs = int(d / time.Millisecond) }
}

// NewRoleFileWatcher returns a watcher for files, keyed by path.
func NewRoleFileWatcher(files map[string]Reloader, logger *log.Logger, opts ...WatcherOption) *RoleFileWatcher {
	w := &RoleFileWatcher{
		files:        make(map[string]Reloader, len(files)),
		logger:       orDiscard(logger),
		debounceMs:   defaultDebounceMs,
		pollInterval: defaultPollInterval,
		timers:       make(map[string]*time.Timer),
		modTimes:     make(map[string]time.Time),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for path, r := range files {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		w.files[filepath.Clean(path)] = r
	}
	for _, o := range opts {
		o(w)
	}
	for path := range w.files {
		w.modTimes[path] = modTime(path)
	}
	return w
}

// Start watches until ctx is cancelled or Stop is called.
func (w *RoleFileWatcher) Start(ctx context.Context) {
	defer close(w.doneCh)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Printf("RoleFileWatcher: fsnotify init failed (%v), using poll-only", err)
	} else {
		dirs := make(map[string]bool)
		for path := range w.files {
			dirs[filepath.Dir(path)] = true
		}
		for dir := range dirs {
			if err := watcher.Add(dir); err != nil {
				w.logger.Printf("RoleFileWatcher: fsnotify add %s failed (%v), using poll-only", dir, err)
				_ = watcher.Close()
				watcher = nil
				break
			}
		}
	}

	if watcher != nil {
		w.watcher = watcher
		defer w.watcher.Close()
		go w.watchLoop(ctx)
	}

	w.pollLoop(ctx)
}

// Stop signals the watcher to stop and waits for it. Call after cancelling the context.
func (w *RoleFileWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// PollOnce compares modification times once and reloads changed files.
func (w *RoleFileWatcher) PollOnce() {
	for path := range w.files {
		mt := modTime(path)
		w.mu.Lock()
		changed := !mt.Equal(w.modTimes[path])
		w.modTimes[path] = mt
		w.mu.Unlock()
		if changed {
			w.reload(path)
		}
	}
}

func (w *RoleFileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if _, watched := w.files[path]; !watched {
				continue
			}
			w.reloadDebounced(path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("RoleFileWatcher: %v", err)
		}
	}
}

func (w *RoleFileWatcher) reloadDebounced(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t := w.timers[path]; t != nil {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(time.Duration(w.debounceMs)*time.Millisecond, func() {
		w.mu.Lock()
		w.modTimes[path] = modTime(path)
		w.mu.Unlock()
		w.reload(path)
	})
}

func (w *RoleFileWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.PollOnce()
		}
	}
}

func (w *RoleFileWatcher) reload(path string) {
	r := w.files[path]
	if r == nil {
		return
	}
	if err := r.Reload(); err != nil {
		w.logger.Printf("RoleFileWatcher: keeping previous roles: %v", err)
		return
	}
	w.logger.Printf("RoleFileWatcher: reloaded %s", filepath.Base(path))
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
