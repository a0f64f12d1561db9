package storage

import (
	"context"
	"errors"
	"testing"
)

func TestLocalReadWrite(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()

	if err := s.Write(ctx, "nested/dir/file.yaml", []byte("content")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := s.Read(ctx, "nested/dir/file.yaml")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("read %q, want content", data)
	}
}

func TestLocalReadMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	_, err = s.Read(context.Background(), "missing.yaml")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLocalListRecursive(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()
	for _, p := range []string{"checkpoints/a.yaml", "checkpoints/objects/deadbeef", "state.yaml"} {
		if err := s.Write(ctx, p, []byte("x")); err != nil {
			t.Fatalf("write %s failed: %v", p, err)
		}
	}

	paths, err := s.List(ctx, "checkpoints/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := map[string]bool{
		"checkpoints/a.yaml":           true,
		"checkpoints/objects/deadbeef": true,
	}
	if len(paths) != len(want) {
		t.Fatalf("got %v, want %d entries", paths, len(want))
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %s", p)
		}
	}

	// Listing a prefix with no entries is empty, not an error.
	paths, err = s.List(ctx, "nothing/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("got %v, want empty", paths)
	}
}

func TestLocalExistsDelete(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()

	ok, err := s.Exists(ctx, "file.yaml")
	if err != nil || ok {
		t.Fatalf("exists = %v, %v; want false, nil", ok, err)
	}
	if err := s.Write(ctx, "file.yaml", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ok, err = s.Exists(ctx, "file.yaml")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v; want true, nil", ok, err)
	}
	if err := s.Delete(ctx, "file.yaml"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.Delete(ctx, "file.yaml"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestLocalPathTraversalStaysInside(t *testing.T) {
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()

	if err := s.Write(ctx, "../escape.yaml", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	// The traversal is neutralized and the file lands inside the base dir.
	if _, err := s.Read(ctx, "escape.yaml"); err != nil {
		t.Errorf("read inside base failed: %v", err)
	}
}
