package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is a coalesced corpus file operation.
type Op int

const (
	// OpModify indicates the corpus content changed (including replace-by-rename).
	OpModify Op = iota
	// OpCreate indicates the corpus file appeared.
	OpCreate
	// OpDelete indicates the corpus file was removed.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpModify:
		return "MODIFY"
	case OpCreate:
		return "CREATE"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// DefaultDebounceWindow is the default quiet period before a change
// fires OnChange. Exporters rewrite the corpus over many writes; each
// event resets the window so ingest starts once, after the last one.
const DefaultDebounceWindow = 500 * time.Millisecond

// WatcherConfig configures a CorpusWatcher.
type WatcherConfig struct {
	// CorpusPath is the corpus file to watch.
	CorpusPath string

	// DebounceWindow is the quiet period before OnChange fires.
	// Defaults to DefaultDebounceWindow.
	DebounceWindow time.Duration

	// OnChange is called with the coalesced operation after the
	// debounce window closes. It runs on the watcher's timer
	// goroutine; long work (a re-ingest) is fine, but events that
	// arrive meanwhile start a new window rather than queueing.
	OnChange func(op Op)
}

// CorpusWatcher watches a single corpus file through fsnotify and
// debounces its events. It watches the parent directory rather than
// the file: editors and exporters replace files via rename, which
// silently detaches a watch registered on the file itself.
//
// Operations within one window coalesce pairwise:
// CREATE+MODIFY stays CREATE, CREATE+DELETE cancels out,
// MODIFY+DELETE becomes DELETE, DELETE+CREATE becomes MODIFY.
type CorpusWatcher struct {
	corpusPath string // absolute
	base       string // corpus filename, for event filtering
	window     time.Duration
	onChange   func(op Op)

	fsw *fsnotify.Watcher

	mu         sync.Mutex
	timer      *time.Timer
	firstOp    Op
	pendingOp  Op
	hasPending bool
	stopped    bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCorpusWatcher creates a watcher for the given corpus file.
func NewCorpusWatcher(cfg WatcherConfig) (*CorpusWatcher, error) {
	if cfg.CorpusPath == "" {
		return nil, fmt.Errorf("corpus path is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("OnChange callback is required")
	}

	absPath, err := filepath.Abs(cfg.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}

	window := cfg.DebounceWindow
	if window <= 0 {
		window = DefaultDebounceWindow
	}

	return &CorpusWatcher{
		corpusPath: absPath,
		base:       filepath.Base(absPath),
		window:     window,
		onChange:   cfg.OnChange,
		stopCh:     make(chan struct{}),
	}, nil
}

// Start begins watching and blocks until the context is cancelled or
// Stop is called. Callers run it in its own goroutine.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.fsw = fsw
	defer func() { _ = fsw.Close() }()

	dir := filepath.Dir(w.corpusPath)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch corpus directory %s: %w", dir, err)
	}

	slog.Info("corpus_watch_started",
		slog.String("corpus", w.corpusPath),
		slog.Duration("debounce", w.window))

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("corpus_watch_error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent filters directory events down to the corpus file and
// feeds the debouncer.
func (w *CorpusWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != w.base {
		return
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpDelete
	default:
		// Chmod and friends don't change content
		return
	}

	w.add(op)
}

// add coalesces an operation into the pending window and resets the
// debounce timer.
func (w *CorpusWatcher) add(op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	if !w.hasPending {
		w.firstOp = op
		w.pendingOp = op
		w.hasPending = true
	} else {
		switch w.firstOp {
		case OpCreate:
			switch op {
			case OpModify:
				// still a brand new file
				w.pendingOp = OpCreate
			case OpDelete:
				// appeared and vanished inside one window
				w.hasPending = false
				if w.timer != nil {
					w.timer.Stop()
				}
				return
			default:
				w.pendingOp = op
			}
		case OpDelete:
			if op == OpCreate {
				// replaced via rename
				w.pendingOp = OpModify
			} else {
				w.pendingOp = op
			}
		default:
			w.pendingOp = op
		}
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, w.flush)
}

// flush fires OnChange with the coalesced operation.
func (w *CorpusWatcher) flush() {
	w.mu.Lock()
	if w.stopped || !w.hasPending {
		w.mu.Unlock()
		return
	}
	op := w.pendingOp
	w.hasPending = false
	w.mu.Unlock()

	slog.Debug("corpus_change_detected", slog.String("op", op.String()))
	w.onChange(op)
}

// Stop stops the watcher. Safe to call multiple times.
func (w *CorpusWatcher) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		close(w.stopCh)
	})
	return nil
}
