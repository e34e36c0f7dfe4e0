package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// SpawnLock is an advisory lock around the check-then-spawn sequence.
// The OS releases it when the holder dies, so a crashed client cannot
// wedge later invocations.
type SpawnLock struct {
	lock *flock.Flock
}

// AcquireSpawnLock waits up to wait for an exclusive lock on path,
// polling every retry. It returns an error when the lock is still held
// by another process at the deadline.
func AcquireSpawnLock(ctx context.Context, path string, wait, retry time.Duration) (*SpawnLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock file directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	l := flock.New(path)
	locked, err := l.TryLockContext(ctx, retry)
	if err != nil {
		return nil, fmt.Errorf("spawn lock held by another process: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("spawn lock held by another process")
	}
	return &SpawnLock{lock: l}, nil
}

// Release unlocks. The lock file itself is left in place; removing it
// would let two processes lock different inodes.
// Safe to call multiple times.
func (l *SpawnLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	lk := l.lock
	l.lock = nil
	return lk.Unlock()
}

// IsSpawnLocked reports whether another process holds the lock at path.
func IsSpawnLocked(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return false
	}
	if !locked {
		return true
	}
	_ = l.Unlock()
	return false
}
