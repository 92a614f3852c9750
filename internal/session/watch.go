package session

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to persisted session state so a live status
// view can refresh without polling.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}

	// Changes receives the session ID of each updated aggregate.
	Changes chan string
}

// NewWatcher watches the store's directory for session-state writes.
// The directory is created if no session has been saved yet.
func NewWatcher(store *Store) (*Watcher, error) {
	if err := os.MkdirAll(store.Dir(), 0755); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(store.Dir()); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		done:    make(chan struct{}),
		Changes: make(chan string, 16),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Saves land via rename, so Create covers the common case;
			// Write covers direct writes.
			if event.Op&fsnotify.Create == 0 && event.Op&fsnotify.Write == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			select {
			case w.Changes <- strings.TrimSuffix(name, ".json"):
			default:
				// Drop updates rather than block the watch loop; the
				// reader reloads full state on every signal anyway.
			}
		case <-w.watcher.Errors:
			// Keep watching.
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	close(w.done)
	w.watcher.Close()
}
