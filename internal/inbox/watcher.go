package inbox

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher uses fsnotify to watch the inbox directory and hands
// settled session files to a callback. A file is settled once
// no write to it has been seen for the debounce period.
type Watcher struct {
	onChange func(paths []string)
	watcher  *fsnotify.Watcher
	debounce time.Duration
	pending  map[string]time.Time
	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewWatcher creates a file watcher that calls onChange when
// files are modified after the debounce period elapses.
func NewWatcher(
	debounce time.Duration, onChange func(paths []string),
) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is nil: %w", os.ErrInvalid)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		onChange: onChange,
		watcher:  fsw,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	return w, nil
}

// Watch adds dir to the watch list. Subdirectories are not
// watched.
func (w *Watcher) Watch(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	return nil
}

// Start begins processing file events in a goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop stops the watcher and waits for it to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
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
			log.Printf("inbox: watcher error: %v", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

// isSessionFile reports whether path names a file the inbox
// should ingest.
func isSessionFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".json") && !strings.HasPrefix(base, ".")
}

// handleEvent records a pending change for session files that
// were created or written.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if !isSessionFile(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = w.now()
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}

	now := w.now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}

	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if len(ready) > 0 {
		w.onChange(ready)
	}
}
