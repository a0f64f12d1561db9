package lockfile

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/wronai/taskguard/pkg/cerr"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	// Released locks can be taken again immediately.
	l, err = Acquire(path)
	if err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}
	defer l.Release()
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil release = %v, want nil", err)
	}
}

func TestContentionExhaustsRetryBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	held, err := Acquire(path)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer held.Release()

	_, err = Acquire(path)
	if !cerr.IsCode(err, cerr.StorageConflict) {
		t.Errorf("got %v, want StorageConflict", err)
	}
	if cerr.HintOf(err) == "" {
		t.Error("conflict error carries no hint")
	}
}

func TestWithLockSerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(path, func() error {
				mu.Lock()
				counter++
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("WithLock failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if counter != 4 {
		t.Errorf("counter = %d, want 4", counter)
	}
}
