package contextfiles

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to attached files. Parent directories are
// watched so files replaced by rename (as editors save) are still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(paths []string)

	mu      sync.Mutex
	files   map[string]bool // absolute paths of interest
	dirs    map[string]bool // watched directories
	pending map[string]bool
	timer   *time.Timer
	done    chan struct{}
}

// NewWatcher starts a watcher. onChange runs on the watcher's goroutine
// with the changed paths, at most once per debounce window.
func NewWatcher(debounce time.Duration, onChange func(paths []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		onChange: onChange,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		pending:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	go w.processEvents()
	return w, nil
}

// Sync makes the watched set equal to paths
func (w *Watcher) Sync(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range w.dirs {
		if !dirs[dir] {
			_ = w.watcher.Remove(dir)
			delete(w.dirs, dir)
		}
	}
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			log.Warn("cannot watch %s: %v", dir, err)
			continue
		}
		w.dirs[dir] = true
	}
	w.files = files
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.handle(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files[filepath.Clean(name)] {
		return
	}
	w.pending[filepath.Clean(name)] = true
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}
	if len(paths) > 0 && w.onChange != nil {
		log.Debug("context files changed: %v", paths)
		w.onChange(paths)
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	w.mu.Lock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
