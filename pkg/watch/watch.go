// Package watch reports modifications of the payload file between its
// validation and its snapshot. It is a best-effort signal: the digest
// comparison of the captured bytes stays authoritative.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrTampered is returned by Stop when the file was modified while watched
var ErrTampered = errors.New("watch: payload modified while watched")

const tamperOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watcher watches one file through its parent directory so that a replace
// by rename is seen as well as an in-place write
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  *slog.Logger

	mu     sync.Mutex
	events []fsnotify.Event
	errs   []error
	done   chan struct{}
	once   sync.Once
}

// New starts watching path
func New(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch: failed to watch %q: %w", path, err)
	}

	w := &Watcher{
		watcher: fw,
		path:    abs,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || event.Op&tamperOps == 0 {
				continue
			}
			w.logger.Warn("payload modified while watched", "path", w.path, "op", event.Op.String())
			w.mu.Lock()
			w.events = append(w.events, event)
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", "path", w.path, "error", err)
			w.mu.Lock()
			w.errs = append(w.errs, err)
			w.mu.Unlock()
		}
	}
}

// Tampered reports whether a modification was observed so far
func (w *Watcher) Tampered() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events) > 0
}

// Events returns the modifications observed so far
func (w *Watcher) Events() []fsnotify.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]fsnotify.Event(nil), w.events...)
}

// Stop ends the watch. It returns ErrTampered when a modification was
// observed, or the first watcher error (an overflowed queue may have
// dropped events).
func (w *Watcher) Stop() error {
	w.once.Do(func() {
		w.watcher.Close()
		<-w.done
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.events) > 0 {
		return fmt.Errorf("%w: %v %s", ErrTampered, w.events[0].Op, w.path)
	}
	if len(w.errs) > 0 {
		return fmt.Errorf("watch: %w", w.errs[0])
	}
	return nil
}
