package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTryLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "treekeeper.lock")

	first := NewSemaphore(path)
	if err := first.TryLock(); err != nil {
		t.Fatalf("first TryLock: %v", err)
	}
	if !first.Locked() {
		t.Error("expected first semaphore to report locked")
	}

	// a second handle contends like another process would
	second := NewSemaphore(path)
	if err := second.TryLock(); !errors.Is(err, ErrHeld) {
		t.Fatalf("second TryLock = %v, want ErrHeld", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if first.Locked() {
		t.Error("expected first semaphore to be released")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file should persist after unlock: %v", err)
	}

	if err := second.TryLock(); err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	if err := second.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestLockTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treekeeper.lock")
	holder := NewSemaphore(path)
	if err := holder.TryLock(); err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer holder.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := NewSemaphore(path).Lock(ctx); !errors.Is(err, ErrHeld) {
		t.Fatalf("Lock = %v, want ErrHeld", err)
	}
}

func TestUnlockWithoutLock(t *testing.T) {
	s := NewSemaphore(filepath.Join(t.TempDir(), "never.lock"))
	if err := s.Unlock(); err != nil {
		t.Errorf("Unlock on unheld semaphore: %v", err)
	}
}
