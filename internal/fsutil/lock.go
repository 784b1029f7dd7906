package fsutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds a lock past the timeout.
var ErrLocked = errors.New("lock held by another process")

const lockPoll = 50 * time.Millisecond

// AcquireLock takes the cross-process file lock at path, polling until it is
// free, timeout elapses, or ctx is done. The returned func releases it.
func AcquireLock(ctx context.Context, path string, timeout time.Duration) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return func() {}, fmt.Errorf("cannot create lock dir: %w", err)
	}
	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire lock %s: %w", path, err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("%w (lock: %s)", ErrLocked, path)
		}
		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-time.After(lockPoll):
		}
	}
}

// TryLock takes the lock at path without waiting. ok is false when another
// holder has it.
func TryLock(path string) (release func(), ok bool, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return func() {}, false, fmt.Errorf("cannot create lock dir: %w", err)
	}
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return func() {}, false, fmt.Errorf("cannot acquire lock %s: %w", path, err)
	}
	if !locked {
		return func() {}, false, nil
	}
	return func() { _ = l.Unlock() }, true, nil
}
