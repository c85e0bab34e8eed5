package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// RotatingWriter appends to a file and rotates it once it crosses a
// size threshold: server.log becomes server.log.1, .1 becomes .2, and
// generations at or past the keep count are discarded. Writes are
// serialized. The zero value is not usable; use NewRotatingWriter.
type RotatingWriter struct {
	path  string
	limit int64 // rotation threshold in bytes
	keep  int   // rotated generations retained

	mu        sync.Mutex
	f         *os.File
	size      int64
	eagerSync bool
}

// NewRotatingWriter opens (or creates) the log file at path, creating
// parent directories as needed. maxSizeMB is the rotation threshold,
// maxFiles the number of rotated generations kept. Per-write fsync is
// on by default so a tailing terminal keeps up with the server.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &RotatingWriter{
		path:      path,
		limit:     int64(maxSizeMB) << 20,
		keep:      maxFiles,
		eagerSync: true,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// SetImmediateSync toggles fsync-per-write. Turn it off when write
// volume matters more than real-time visibility.
func (w *RotatingWriter) SetImmediateSync(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.eagerSync = on
}

// Write appends p, rotating first if the file would cross the limit.
// A failed rotation is reported to stderr and the write proceeds on
// the current file; losing rotation is better than losing the entry.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.f.Write(p)
	w.size += int64(n)
	if err == nil && w.eagerSync {
		_ = w.f.Sync()
	}
	return n, err
}

// Sync flushes buffered data to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Sync()
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.f = f
	w.size = st.Size()
	return nil
}

// rotate closes the live file, shifts the generation chain up by one,
// and reopens a fresh file at the base path.
func (w *RotatingWriter) rotate() error {
	if w.f != nil {
		if err := w.f.Close(); err != nil {
			return fmt.Errorf("close before rotation: %w", err)
		}
		w.f = nil
	}

	for _, gen := range w.generations() {
		switch {
		case gen >= w.keep:
			_ = os.Remove(fmt.Sprintf("%s.%d", w.path, gen))
		default:
			_ = os.Rename(
				fmt.Sprintf("%s.%d", w.path, gen),
				fmt.Sprintf("%s.%d", w.path, gen+1),
			)
		}
	}
	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.path+".1"); err != nil {
			return fmt.Errorf("shift live log: %w", err)
		}
	}

	w.size = 0
	return w.open()
}

// generations lists existing rotation indexes, highest first, so the
// shift in rotate never renames over a file that still exists.
func (w *RotatingWriter) generations() []int {
	dir := filepath.Dir(w.path)
	prefix := filepath.Base(w.path) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var gens []int
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix))
		if err != nil || n < 1 {
			continue
		}
		gens = append(gens, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(gens)))
	return gens
}
