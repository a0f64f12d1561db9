package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wronai/taskguard/pkg/cerr"
	"github.com/wronai/taskguard/pkg/lockfile"
	"github.com/wronai/taskguard/pkg/storage"
)

const (
	tasksFile     = "TODO.yaml"
	changelogFile = "CHANGELOG.yaml"
)

// taskData is the on-disk structure of the task list file.
type taskData struct {
	Tasks []*Record `yaml:"tasks"`
}

// changelogItem is one entry inside a day group.
type changelogItem struct {
	Type        ChangeType `yaml:"type"`
	Version     string     `yaml:"version,omitempty"`
	Description string     `yaml:"description"`
}

// changelogDay groups entries of a single calendar day.
type changelogDay struct {
	Date    string          `yaml:"date"`
	Entries []changelogItem `yaml:"entries"`
}

// Store persists task records and the changelog. Every mutation runs under an
// exclusive file lock; readers see the last committed snapshot.
type Store struct {
	storage  storage.Storage
	lockPath string
}

// NewStore creates a store on top of the given storage backend. lockPath is a
// local filesystem path used for the inter-process mutation lock.
func NewStore(s storage.Storage, lockPath string) *Store {
	return &Store{storage: s, lockPath: lockPath}
}

// EnsureInitialized writes an empty task list when none exists yet, so a
// fresh project has a file to edit and merge into.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	exists, err := s.storage.Exists(ctx, tasksFile)
	if err != nil {
		return cerr.WrapStorageReadError("task list", err)
	}
	if exists {
		return nil
	}
	return s.save(ctx, nil)
}

// List returns all task records. A missing task file yields an empty list.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	return s.load(ctx)
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id int) (*Record, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("task %d not found", id), nil)
}

// Add appends a new record, assigning the next id when none is set.
func (s *Store) Add(ctx context.Context, r *Record) (*Record, error) {
	err := lockfile.WithLock(s.lockPath, func() error {
		records, err := s.load(ctx)
		if err != nil {
			return err
		}
		if r.ID == 0 {
			r.ID = maxID(records) + 1
		} else {
			for _, existing := range records {
				if existing.ID == r.ID {
					return cerr.NewError(cerr.AlreadyExists,
						fmt.Sprintf("task %d already exists", r.ID), nil)
				}
			}
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		if err := r.Validate(); err != nil {
			return err
		}
		return s.save(ctx, append(records, r))
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces the stored record with the same id.
func (s *Store) Update(ctx context.Context, r *Record) error {
	return lockfile.WithLock(s.lockPath, func() error {
		records, err := s.load(ctx)
		if err != nil {
			return err
		}
		for i, existing := range records {
			if existing.ID == r.ID {
				records[i] = r
				return s.save(ctx, records)
			}
		}
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("task %d not found", r.ID), nil)
	})
}

// Merge applies incoming records against the stored set. Records matching an
// existing task by normalized title update that task's fields; the rest are
// appended with freshly assigned ids. Returns the counts of added and updated
// records.
func (s *Store) Merge(ctx context.Context, incoming []*Record) (added, updated int, err error) {
	err = lockfile.WithLock(s.lockPath, func() error {
		records, loadErr := s.load(ctx)
		if loadErr != nil {
			return loadErr
		}
		byTitle := make(map[string]*Record, len(records))
		for _, r := range records {
			byTitle[NormalizeTitle(r.Title)] = r
		}
		nextID := maxID(records) + 1
		for _, in := range incoming {
			if existing, ok := byTitle[NormalizeTitle(in.Title)]; ok {
				mergeInto(existing, in)
				updated++
				continue
			}
			in.ID = nextID
			nextID++
			if in.CreatedAt.IsZero() {
				in.CreatedAt = time.Now()
			}
			records = append(records, in)
			byTitle[NormalizeTitle(in.Title)] = in
			added++
		}
		if vErr := ValidateAll(records); vErr != nil {
			return vErr
		}
		return s.save(ctx, records)
	})
	if err != nil {
		return 0, 0, err
	}
	return added, updated, nil
}

// mergeInto copies the fields an import may refresh. Completed tasks stay
// immutable apart from their status moving forward.
func mergeInto(dst, src *Record) {
	if dst.Status == StatusCompleted {
		return
	}
	if src.Status != "" {
		dst.Status = src.Status
		if src.Status == StatusCompleted && dst.CompletedAt == nil {
			now := time.Now()
			dst.CompletedAt = &now
		}
	}
	if src.Priority != "" {
		dst.Priority = src.Priority
	}
	if src.Category != "" {
		dst.Category = src.Category
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if len(src.Subtasks) > 0 {
		dst.Subtasks = src.Subtasks
	}
	if len(src.Labels) > 0 {
		dst.Labels = src.Labels
	}
	if src.EstimatedHours > 0 {
		dst.EstimatedHours = src.EstimatedHours
	}
}

// AppendChangelog adds an entry under its date group. An entry identical to
// one already recorded for that date is a no-op, which keeps task completion
// idempotent.
func (s *Store) AppendChangelog(ctx context.Context, entry ChangelogEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return lockfile.WithLock(s.lockPath, func() error {
		days, err := s.loadChangelog(ctx)
		if err != nil {
			return err
		}
		for i := range days {
			if days[i].Date != entry.Date {
				continue
			}
			for _, e := range days[i].Entries {
				if e.Type == entry.Type && e.Description == entry.Description && e.Version == entry.Version {
					return nil
				}
			}
			days[i].Entries = append(days[i].Entries, toItem(entry))
			return s.saveChangelog(ctx, days)
		}
		days = append(days, changelogDay{Date: entry.Date, Entries: []changelogItem{toItem(entry)}})
		sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
		return s.saveChangelog(ctx, days)
	})
}

// Changelog returns all entries flattened, oldest date first.
func (s *Store) Changelog(ctx context.Context) ([]ChangelogEntry, error) {
	days, err := s.loadChangelog(ctx)
	if err != nil {
		return nil, err
	}
	var entries []ChangelogEntry
	for _, day := range days {
		for _, e := range day.Entries {
			entries = append(entries, ChangelogEntry{
				Date:        day.Date,
				Version:     e.Version,
				Type:        e.Type,
				Description: e.Description,
			})
		}
	}
	return entries, nil
}

func toItem(entry ChangelogEntry) changelogItem {
	return changelogItem{Type: entry.Type, Version: entry.Version, Description: entry.Description}
}

func maxID(records []*Record) int {
	max := 0
	for _, r := range records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max
}

func (s *Store) load(ctx context.Context) ([]*Record, error) {
	data, err := s.storage.Read(ctx, tasksFile)
	if err != nil {
		if cerrIsNotFound(err) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("task list", err)
	}
	var td taskData
	if err := yaml.Unmarshal(data, &td); err != nil {
		return nil, cerr.NewErrorWithHint(cerr.Validation, "malformed task list", err,
			"fix "+tasksFile+" by hand or re-import it with taskguard parse")
	}
	return td.Tasks, nil
}

func (s *Store) save(ctx context.Context, records []*Record) error {
	data, err := yaml.Marshal(taskData{Tasks: records})
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to marshal task list", err)
	}
	if err := s.storage.Write(ctx, tasksFile, data); err != nil {
		return cerr.WrapStorageWriteError("task list", err)
	}
	return nil
}

func (s *Store) loadChangelog(ctx context.Context) ([]changelogDay, error) {
	data, err := s.storage.Read(ctx, changelogFile)
	if err != nil {
		if cerrIsNotFound(err) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("changelog", err)
	}
	var days []changelogDay
	if err := yaml.Unmarshal(data, &days); err != nil {
		return nil, cerr.NewError(cerr.Validation, "malformed changelog", err)
	}
	return days, nil
}

func (s *Store) saveChangelog(ctx context.Context, days []changelogDay) error {
	data, err := yaml.Marshal(days)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to marshal changelog", err)
	}
	if err := s.storage.Write(ctx, changelogFile, data); err != nil {
		return cerr.WrapStorageWriteError("changelog", err)
	}
	return nil
}

func cerrIsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || cerr.IsCode(err, cerr.NotFound)
}
