// Package lock provides the semaphore file that keeps two treekeeper runs
// from walking the same trees at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process owns the semaphore
var ErrHeld = errors.New("lock held by another process")

const retryDelay = 250 * time.Millisecond

// Semaphore is an exclusive advisory lock on a file. The kernel drops the
// lock if the holding process dies, so a crashed run never blocks the next one.
type Semaphore struct {
	flock *flock.Flock
	path  string
}

// NewSemaphore creates a semaphore backed by the file at path
func NewSemaphore(path string) *Semaphore {
	return &Semaphore{
		flock: flock.New(path),
		path:  path,
	}
}

// Path returns the lock file path
func (s *Semaphore) Path() string {
	return s.path
}

// TryLock acquires the semaphore without blocking. It returns ErrHeld when
// another process holds it.
func (s *Semaphore) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory for %s: %w", s.path, err)
	}
	acquired, err := s.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to try lock on %s: %w", s.path, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrHeld, s.path)
	}
	return nil
}

// Lock waits for the semaphore until ctx is done
func (s *Semaphore) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory for %s: %w", s.path, err)
	}
	acquired, err := s.flock.TryLockContext(ctx, retryDelay)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrHeld, s.path, ctxErr)
		}
		return fmt.Errorf("failed to acquire lock on %s: %w", s.path, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrHeld, s.path)
	}
	return nil
}

// Locked reports whether this semaphore currently holds the lock
func (s *Semaphore) Locked() bool {
	return s.flock.Locked()
}

// Unlock releases the semaphore. The file stays in place: removing it would
// let a waiter holding the old inode and a newcomer both believe they own it.
func (s *Semaphore) Unlock() error {
	if !s.flock.Locked() {
		return nil
	}
	if err := s.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", s.path, err)
	}
	return nil
}
