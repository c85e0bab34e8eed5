package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocking Lock re-attempts acquisition.
const lockRetryDelay = 250 * time.Millisecond

// FileLock serializes ingest runs against a data directory using
// gofrs/flock. Two GrantScout processes writing the same indices at
// once would corrupt them; the loser either fails fast (TryLock) or
// waits (Lock), depending on the caller.
// Works on all platforms (Unix, Linux, macOS, Windows).
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool // explicit state tracking for clarity
}

// NewFileLock creates a lock scoped to the given data directory.
// The lock file lives at <dir>/.ingest.lock
func NewFileLock(dir string) *FileLock {
	lockPath := filepath.Join(dir, ".ingest.lock")
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// ensureDir creates the lock file's parent directory if needed.
func (l *FileLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}

// Lock acquires the lock, blocking until it is available or the
// context is cancelled. Used by watcher-triggered re-ingests that
// should queue behind a manual run rather than abort it.
func (l *FileLock) Lock(ctx context.Context) error {
	if err := l.ensureDir(); err != nil {
		return err
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("lock not acquired: %s", l.path)
	}

	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns false if another process holds it. Manual ingest runs use
// this to fail fast with a clear message instead of queueing.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call multiple times or on a lock
// that was never acquired.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("failed to release lock: %w", err)
	}

	l.locked = false
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked reports whether this process currently holds the lock.
func (l *FileLock) IsLocked() bool {
	return l.locked
}
