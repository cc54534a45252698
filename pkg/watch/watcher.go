// Package watch re-runs a suite whenever one of its logfiles changes.
// Logfiles may not exist yet when watching starts (the simulation run
// that produces them can still be going), so the parent directories are
// watched and create events count as changes.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a set of logfiles and fires a single callback per
// burst of changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	files   map[string]*fileState
	mu      sync.Mutex

	// Debounce coalesces rapid writes (solvers append logs in many
	// small flushes) into one trigger.
	Debounce time.Duration

	// OnChange is called with the files that changed since the last
	// trigger. Re-entrancy is suppressed: changes arriving during a
	// callback are batched into the next one.
	OnChange func(changed []string)

	// OnError receives watcher errors.
	OnError func(err error)

	pending map[string]bool
	running bool
}

type fileState struct {
	lastModified time.Time
	size         int64
	known        bool
}

// New creates a Watcher over the given logfile paths.
func New(paths []string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsWatcher,
		files:    make(map[string]*fileState),
		pending:  make(map[string]bool),
		Debounce: 500 * time.Millisecond,
	}

	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			fsWatcher.Close()
			return nil, fmt.Errorf("failed to resolve path %q: %w", path, err)
		}
		st := &fileState{}
		if stat, err := os.Stat(abs); err == nil {
			st.lastModified = stat.ModTime()
			st.size = stat.Size()
			st.known = true
		}
		w.files[abs] = st
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return nil, fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}
	return w, nil
}

// Run blocks, dispatching change callbacks, until the context is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if !w.noteChange(abs) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.Debounce, w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

// noteChange records a change to a watched file, ignoring events for
// unrelated files in the same directories and writes that did not
// actually alter the file.
func (w *Watcher) noteChange(abs string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, watched := w.files[abs]
	if !watched {
		return false
	}
	stat, err := os.Stat(abs)
	if err != nil {
		return false
	}
	if state.known && stat.ModTime().Equal(state.lastModified) && stat.Size() == state.size {
		return false
	}
	state.lastModified = stat.ModTime()
	state.size = stat.Size()
	state.known = true
	w.pending[abs] = true
	return true
}

// fire drains the pending set into a single OnChange call.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.running || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]bool)
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		again := len(w.pending) > 0
		w.mu.Unlock()
		if again {
			time.AfterFunc(w.Debounce, w.fire)
		}
	}()

	if w.OnChange != nil {
		w.OnChange(changed)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
