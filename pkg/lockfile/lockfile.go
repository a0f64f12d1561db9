// Package lockfile guards mutations of shared project state files.
//
// Several sessions may work against the same project directory at once, so
// every task-store mutation takes an exclusive file lock first. Acquisition
// uses bounded retry-with-backoff; exceeding the budget is a StorageConflict
// the caller surfaces to the user rather than silently proceeding.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/wronai/taskguard/pkg/cerr"
)

const (
	// acquireAttempts bounds the retry loop.
	acquireAttempts = 5

	// initialBackoff is the delay after the first failed attempt. It doubles
	// on every retry.
	initialBackoff = 50 * time.Millisecond
)

// Lock is an exclusive advisory lock on a single path.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the exclusive lock at path, retrying with exponential backoff.
// It returns a StorageConflict error once the retry budget is exhausted.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to prepare lock directory", err)
	}

	fl := flock.New(path)
	backoff := initialBackoff
	for attempt := 1; attempt <= acquireAttempts; attempt++ {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, cerr.NewError(cerr.Internal, "failed to acquire lock", err)
		}
		if ok {
			return &Lock{fl: fl}, nil
		}
		if attempt < acquireAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, cerr.NewErrorWithHint(
		cerr.StorageConflict,
		fmt.Sprintf("lock on %s held by another session", filepath.Base(path)),
		nil,
		"another taskguard process is mutating this project; retry once it finishes",
	)
}

// Release drops the lock. Safe to call on a nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// WithLock runs fn while holding the exclusive lock at path.
func WithLock(path string, fn func() error) error {
	l, err := Acquire(path)
	if err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
