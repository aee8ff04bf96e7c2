// Package watch ingests image files dropped into a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kozaktomas/photo-map/internal/normalize"
	"github.com/rs/zerolog"
)

// Handler is called once per settled image file.
type Handler func(path string)

// Watcher watches a directory tree and reports image files once they have
// stopped changing for the settle delay.
type Watcher struct {
	dir     string
	settle  time.Duration
	handler Handler
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]bool
	pending map[string]*time.Timer
	closed  bool
}

// New creates a watcher on dir and all its subdirectories.
func New(dir string, settle time.Duration, handler Handler, logger zerolog.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		dir:     dir,
		settle:  settle,
		handler: handler,
		logger:  logger.With().Str("component", "watch").Str("dir", dir).Logger(),
		watcher: fsw,
		watched: make(map[string]bool),
		pending: make(map[string]*time.Timer),
	}
	if err := w.addRecursive(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.close()
	w.logger.Info().Int("dirs", w.watchedDirs()).Msg("watching for new photos")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return // removed again
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
			}
		}
		return
	}
	if !normalize.IsImageFile(event.Name) {
		return
	}
	w.schedule(event.Name)
}

// schedule (re)starts the settle timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return
	}
	w.logger.Debug().Str("path", path).Msg("file settled")
	w.handler(path)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.watched[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		w.watched[path] = true
		return nil
	})
}

func (w *Watcher) watchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *Watcher) close() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn().Err(err).Msg("failed to close watcher")
	}
	w.logger.Info().Msg("stopped watching")
}
