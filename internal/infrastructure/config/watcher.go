package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadEvent signals that the watched config file changed and settled.
type ReloadEvent struct {
	Path      string
	Timestamp time.Time
}

// WatcherConfig holds configuration for the config file watcher.
type WatcherConfig struct {
	DebounceDuration time.Duration
	BufferSize       int
}

// DefaultWatcherConfig returns sensible default configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		DebounceDuration: 250 * time.Millisecond,
		BufferSize:       16,
	}
}

// Watcher monitors a single config file for changes. It wraps fsnotify
// with debouncing so editor write bursts collapse into one reload.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    WatcherConfig
	path      string
	events    chan ReloadEvent
	errors    chan error

	// Debouncing state
	pendingAt time.Time
	pendingMu sync.Mutex

	// Lifecycle
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex
}

// NewWatcher creates a watcher for the given config file path. The
// file's parent directory is watched so atomic rename-into-place saves
// are seen as well.
func NewWatcher(path string, cfg WatcherConfig) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = 250 * time.Millisecond
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		path:      absPath,
		events:    make(chan ReloadEvent, cfg.BufferSize),
		errors:    make(chan error, cfg.BufferSize),
		done:      make(chan struct{}),
	}

	return w, nil
}

// Watch starts watching the config file's directory. A non-existent
// directory is an error; a non-existent file is fine (it may be created
// later).
func (w *Watcher) Watch() error {
	dir := filepath.Dir(w.path)
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.processEvents()

	w.wg.Add(1)
	go w.debounceProcessor()

	return nil
}

// Events returns the channel for receiving reload events.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Errors returns the channel for receiving watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	err := w.fsWatcher.Close()
	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return err
}

// processEvents reads from fsnotify and queues changes for debouncing.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.pendingMu.Lock()
			w.pendingAt = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// Drop error if channel is full
			}
		}
	}
}

// debounceProcessor periodically checks whether a pending change has
// settled and emits a single reload event for it.
func (w *Watcher) debounceProcessor() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceDuration / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case <-ticker.C:
			w.emitIfStable()
		}
	}
}

func (w *Watcher) emitIfStable() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if w.pendingAt.IsZero() || time.Since(w.pendingAt) < w.config.DebounceDuration {
		return
	}

	event := ReloadEvent{Path: w.path, Timestamp: w.pendingAt}
	w.pendingAt = time.Time{}

	select {
	case w.events <- event:
	default:
		// Drop event if channel is full
	}
}
