package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/wronai/taskguard/pkg/cerr"
)

// Priority orders tasks for suggestion. Critical sorts first.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityBacklog  Priority = "backlog"
)

// Rank returns the sort position of the priority, lowest first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	case PriorityBacklog:
		return 4
	default:
		return 5
	}
}

func (p Priority) Valid() bool {
	return p.Rank() < 5
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusBlocked   Status = "blocked"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusBlocked, StatusCompleted:
		return true
	}
	return false
}

// Record is a single unit of planned work.
type Record struct {
	ID             int        `yaml:"id"`
	Title          string     `yaml:"title"`
	Category       string     `yaml:"category,omitempty"`
	Priority       Priority   `yaml:"priority"`
	Status         Status     `yaml:"status"`
	Description    string     `yaml:"description,omitempty"`
	Dependencies   []int      `yaml:"dependencies,omitempty"`
	EstimatedHours float64    `yaml:"estimated_hours,omitempty"`
	Subtasks       []string   `yaml:"subtasks,omitempty"`
	Labels         []string   `yaml:"labels,omitempty"`
	CreatedAt      time.Time  `yaml:"created_at,omitempty"`
	CompletedAt    *time.Time `yaml:"completed_at,omitempty"`
}

// Validate checks enum domains and basic shape. Dependency references are
// checked store-wide by ValidateAll.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return cerr.NewError(cerr.Validation, fmt.Sprintf("task %d has an empty title", r.ID), nil)
	}
	if !r.Priority.Valid() {
		return cerr.NewError(cerr.Validation,
			fmt.Sprintf("task %d has invalid priority %q", r.ID, r.Priority), nil)
	}
	if !r.Status.Valid() {
		return cerr.NewError(cerr.Validation,
			fmt.Sprintf("task %d has invalid status %q", r.ID, r.Status), nil)
	}
	return nil
}

// ValidateAll validates every record and checks that dependencies reference
// existing ids.
func ValidateAll(records []*Record) error {
	ids := make(map[int]bool, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		ids[r.ID] = true
	}
	for _, r := range records {
		for _, dep := range r.Dependencies {
			if !ids[dep] {
				return cerr.NewError(cerr.Validation,
					fmt.Sprintf("task %d depends on unknown task %d", r.ID, dep), nil)
			}
		}
	}
	return nil
}

// NormalizeTitle reduces a title to a comparison key for merge matching.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// ChangeType classifies a changelog entry.
type ChangeType string

const (
	ChangeFeature ChangeType = "feature"
	ChangeBugfix  ChangeType = "bugfix"
	ChangeChange  ChangeType = "change"
	ChangeRemoval ChangeType = "removal"
)

func (t ChangeType) Valid() bool {
	switch t {
	case ChangeFeature, ChangeBugfix, ChangeChange, ChangeRemoval:
		return true
	}
	return false
}

// ChangelogEntry records one completed change. Entries are append-only.
type ChangelogEntry struct {
	Date        string     `yaml:"date"`
	Version     string     `yaml:"version,omitempty"`
	Type        ChangeType `yaml:"type"`
	Description string     `yaml:"description"`
}

func (e *ChangelogEntry) Validate() error {
	if e.Date == "" {
		return cerr.NewError(cerr.Validation, "changelog entry has no date", nil)
	}
	if !e.Type.Valid() {
		return cerr.NewError(cerr.Validation,
			fmt.Sprintf("changelog entry has invalid type %q", e.Type), nil)
	}
	if strings.TrimSpace(e.Description) == "" {
		return cerr.NewError(cerr.Validation, "changelog entry has an empty description", nil)
	}
	return nil
}
