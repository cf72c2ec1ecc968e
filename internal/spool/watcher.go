package spool

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher signals when job files may be waiting in a directory. It uses
// fsnotify and falls back to polling when fsnotify is unavailable or fails.
type Watcher struct {
	dir   string
	match func(name string) bool

	// events is buffered to 1 so bursts of file events coalesce into one scan.
	events chan struct{}
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	fsw *fsnotify.Watcher // nil when polling

	polling      atomic.Bool
	pollInterval time.Duration
}

// NewWatcher watches dir for files whose base name satisfies match.
func NewWatcher(dir string, match func(name string) bool, pollInterval time.Duration) (*Watcher, error) {
	if match == nil {
		return nil, fmt.Errorf("spool watcher: nil match func")
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	w := &Watcher{
		dir:          dir,
		match:        match,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to directory polling", "error", err)
		w.startPolling()
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		slog.Info("cannot watch spool directory, falling back to polling", "dir", dir, "error", err)
		fsw.Close()
		w.startPolling()
		return w, nil
	}

	w.fsw = fsw
	go w.watch(fsw)
	return w, nil
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events returns a channel that receives a signal when matching files may
// have arrived.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
			w.fsw = nil
		}
	})
	return err
}

func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				if w.match(filepath.Base(event.Name)) {
					w.notify()
				}
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to directory polling", "error", err)
			w.mu.Lock()
			if w.fsw != nil {
				w.fsw.Close()
				w.fsw = nil
			}
			w.mu.Unlock()
			w.startPolling()
			return
		}
	}
}

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// poll signals on every tick that finds at least one matching file.
// Processed jobs leave the directory, so a non-empty listing means work.
func (w *Watcher) poll() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if w.pending() {
				w.notify()
			}
		}
	}
}

func (w *Watcher) pending() bool {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && w.match(e.Name()) {
			return true
		}
	}
	return false
}

// notify sends a single signal to the events channel. If a signal is already
// pending the call is a no-op.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
