package task

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/wronai/taskguard/pkg/cerr"
	"github.com/wronai/taskguard/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	backend, err := storage.NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return NewStore(backend, filepath.Join(dir, "store.lock"))
}

func TestAddAssignsMonotonicIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, title := range []string{"first", "second", "third"} {
		rec, err := store.Add(ctx, &Record{Title: title, Priority: PriorityMedium, Status: StatusPending})
		if err != nil {
			t.Fatalf("failed to add task: %v", err)
		}
		if rec.ID != i+1 {
			t.Errorf("task %q got id %d, want %d", title, rec.ID, i+1)
		}
	}

	// IDs keep growing past the current maximum, explicit ids are kept.
	rec, err := store.Add(ctx, &Record{ID: 10, Title: "explicit", Priority: PriorityLow, Status: StatusPending})
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	if rec.ID != 10 {
		t.Errorf("got id %d, want 10", rec.ID)
	}
	rec, err = store.Add(ctx, &Record{Title: "after explicit", Priority: PriorityLow, Status: StatusPending})
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	if rec.ID != 11 {
		t.Errorf("got id %d, want 11", rec.ID)
	}
}

func TestAddDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, &Record{ID: 1, Title: "a", Priority: PriorityMedium, Status: StatusPending}); err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	_, err := store.Add(ctx, &Record{ID: 1, Title: "b", Priority: PriorityMedium, Status: StatusPending})
	if !cerr.IsCode(err, cerr.AlreadyExists) {
		t.Errorf("got %v, want AlreadyExists", err)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), 42); !cerr.IsCode(err, cerr.NotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
}

func TestListEmptyStore(t *testing.T) {
	store := newTestStore(t)
	records, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestUpdatePersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Add(ctx, &Record{Title: "work", Priority: PriorityHigh, Status: StatusPending})
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	rec.Status = StatusActive
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestMergeByNormalizedTitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, &Record{Title: "Fix the Parser", Priority: PriorityMedium, Status: StatusPending}); err != nil {
		t.Fatalf("failed to add task: %v", err)
	}

	added, updated, err := store.Merge(ctx, []*Record{
		{Title: "fix  the  parser", Priority: PriorityHigh, Status: StatusActive},
		{Title: "brand new task", Priority: PriorityLow, Status: StatusPending},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if added != 1 || updated != 1 {
		t.Errorf("added=%d updated=%d, want 1 and 1", added, updated)
	}

	existing, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if existing.Priority != PriorityHigh || existing.Status != StatusActive {
		t.Errorf("merge did not update fields: %+v", existing)
	}
	if existing.Title != "Fix the Parser" {
		t.Errorf("merge overwrote the stored title: %q", existing.Title)
	}

	fresh, err := store.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fresh.Title != "brand new task" {
		t.Errorf("unexpected new record %+v", fresh)
	}
}

func TestMergeKeepsCompletedTasksImmutable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, &Record{Title: "done work", Priority: PriorityMedium, Status: StatusCompleted}); err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	_, updated, err := store.Merge(ctx, []*Record{
		{Title: "done work", Priority: PriorityCritical, Status: StatusPending},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}
	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusCompleted || got.Priority != PriorityMedium {
		t.Errorf("completed task was mutated: %+v", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	incoming := func() []*Record {
		return []*Record{
			{Title: "alpha", Priority: PriorityMedium, Status: StatusPending},
			{Title: "beta", Priority: PriorityLow, Status: StatusPending},
		}
	}

	added, _, err := store.Merge(ctx, incoming())
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if added != 2 {
		t.Errorf("first merge added %d, want 2", added)
	}
	added, updated, err := store.Merge(ctx, incoming())
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if added != 0 || updated != 2 {
		t.Errorf("second merge added=%d updated=%d, want 0 and 2", added, updated)
	}
	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestAppendChangelogDeduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	entry := ChangelogEntry{Date: "2026-08-23", Type: ChangeFeature, Description: "ship it"}

	for i := 0; i < 3; i++ {
		if err := store.AppendChangelog(ctx, entry); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	entries, err := store.Changelog(ctx)
	if err != nil {
		t.Fatalf("changelog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}
}

func TestChangelogGroupsByDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []ChangelogEntry{
		{Date: "2026-08-22", Type: ChangeFeature, Description: "one"},
		{Date: "2026-08-23", Type: ChangeBugfix, Description: "two"},
		{Date: "2026-08-22", Type: ChangeChange, Description: "three"},
	} {
		if err := store.AppendChangelog(ctx, e); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	entries, err := store.Changelog(ctx)
	if err != nil {
		t.Fatalf("changelog failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Oldest date first, same-date entries in insertion order.
	wantDates := []string{"2026-08-22", "2026-08-22", "2026-08-23"}
	for i, e := range entries {
		if e.Date != wantDates[i] {
			t.Errorf("entry %d date = %s, want %s", i, e.Date, wantDates[i])
		}
	}
}

func TestValidateAllRejectsUnknownDependency(t *testing.T) {
	records := []*Record{
		{ID: 1, Title: "a", Priority: PriorityMedium, Status: StatusPending, Dependencies: []int{2}},
	}
	if err := ValidateAll(records); !cerr.IsCode(err, cerr.Validation) {
		t.Errorf("got %v, want Validation", err)
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("  Fix   The\tParser "); got != "fix the parser" {
		t.Errorf("NormalizeTitle = %q", got)
	}
}
