// Package inbox ingests session files dropped into a directory.
// Each *.json file holds one session object or an array of them.
// After processing, a file is renamed with a .done or .failed
// suffix so it is never ingested twice.
package inbox

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mockify/interviewstats/internal/metrics"
	"github.com/mockify/interviewstats/internal/transcript"
)

const (
	// DefaultDebounce is how long a file must be quiet before
	// it is ingested.
	DefaultDebounce = 500 * time.Millisecond

	doneSuffix   = ".done"
	failedSuffix = ".failed"
)

// Appender stores ingested sessions.
type Appender interface {
	AppendSessions(
		ctx context.Context, sessions ...transcript.Session,
	) ([]string, error)
}

// Inbox watches a directory and appends the sessions it finds.
type Inbox struct {
	dir      string
	store    Appender
	debounce time.Duration
	onIngest func(ids []string)

	// mu serializes ingestion so the initial scan and watcher
	// callbacks never process the same file concurrently.
	mu      sync.Mutex
	watcher *Watcher
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(i *Inbox) { i.debounce = d }
}

// WithOnIngest registers a callback run after each file that
// added at least one session.
func WithOnIngest(fn func(ids []string)) Option {
	return func(i *Inbox) { i.onIngest = fn }
}

// New creates an inbox over dir. Call Start to begin watching.
func New(dir string, store Appender, opts ...Option) *Inbox {
	i := &Inbox{
		dir:      dir,
		store:    store,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Dir returns the watched directory.
func (i *Inbox) Dir() string { return i.dir }

// IngestFile appends the sessions in path and renames the file
// to mark it processed. It returns the ids of the appended
// sessions.
func (i *Inbox) IngestFile(
	ctx context.Context, path string,
) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ingest(ctx, path)
}

func (i *Inbox) ingest(
	ctx context.Context, path string,
) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Already handled by an earlier event.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	ids, err := i.appendBatch(ctx, data)
	if err != nil {
		metrics.RecordInboxFile("failed")
		log.Printf("inbox: %s rejected: %v", filepath.Base(path), err)
		if rerr := os.Rename(path, path+failedSuffix); rerr != nil {
			log.Printf("inbox: marking %s failed: %v", path, rerr)
		}
		return nil, err
	}

	metrics.RecordInboxFile("ingested")
	metrics.RecordIngested("inbox", len(ids))
	if err := os.Rename(path, path+doneSuffix); err != nil {
		return ids, fmt.Errorf("marking %s done: %w", path, err)
	}
	log.Printf(
		"inbox: ingested %d session(s) from %s",
		len(ids), filepath.Base(path),
	)
	if len(ids) > 0 && i.onIngest != nil {
		i.onIngest(ids)
	}
	return ids, nil
}

func (i *Inbox) appendBatch(
	ctx context.Context, data []byte,
) ([]string, error) {
	batch, err := transcript.DecodeBatch(data)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return []string{}, nil
	}
	return i.store.AppendSessions(ctx, batch...)
}

// Scan ingests every session file already in the directory, in
// name order. Per-file failures are logged and do not stop the
// scan. It returns the number of sessions appended.
func (i *Inbox) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return 0, fmt.Errorf("reading inbox: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && isSessionFile(e.Name()) {
			paths = append(paths, filepath.Join(i.dir, e.Name()))
		}
	}
	return i.ingestAll(ctx, paths), nil
}

func (i *Inbox) ingestAll(ctx context.Context, paths []string) int {
	sort.Strings(paths)
	i.mu.Lock()
	defer i.mu.Unlock()
	total := 0
	for _, p := range paths {
		if ctx.Err() != nil {
			return total
		}
		ids, _ := i.ingest(ctx, p)
		total += len(ids)
	}
	return total
}

// Start creates the directory if needed, ingests files already
// present, then watches for new ones until ctx is done or Stop
// is called.
func (i *Inbox) Start(ctx context.Context) error {
	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return fmt.Errorf("creating inbox: %w", err)
	}
	w, err := NewWatcher(i.debounce, func(paths []string) {
		i.ingestAll(ctx, paths)
	})
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	if err := w.Watch(i.dir); err != nil {
		w.watcher.Close()
		return err
	}

	if n, err := i.Scan(ctx); err != nil {
		log.Printf("inbox: initial scan: %v", err)
	} else if n > 0 {
		log.Printf("inbox: initial scan ingested %d session(s)", n)
	}

	w.Start()
	i.watcher = w
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	log.Printf("inbox: watching %s", i.dir)
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (i *Inbox) Stop() {
	if i.watcher != nil {
		i.watcher.Stop()
	}
}
