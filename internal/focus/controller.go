package focus

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wronai/taskguard/internal/config"
	"github.com/wronai/taskguard/internal/task"
	"github.com/wronai/taskguard/pkg/cerr"
)

// Controller enforces the single-active-task discipline over the task store.
// Callers load a SessionState, run operations against it and save it back.
type Controller struct {
	tasks *task.Store
	cfg   config.FocusConfig
	now   func() time.Time
}

func NewController(tasks *task.Store, cfg config.FocusConfig) *Controller {
	return &Controller{tasks: tasks, cfg: cfg, now: time.Now}
}

// Start activates a pending task. It fails when another task is active, the
// task is not pending, or a dependency gate is configured and unmet.
func (c *Controller) Start(ctx context.Context, st *SessionState, id int) (*task.Record, error) {
	if st.ActiveTaskID != 0 {
		return nil, cerr.NewErrorWithHint(cerr.FocusViolation,
			fmt.Sprintf("task %d is already active", st.ActiveTaskID),
			nil, fmt.Sprintf("complete task %d before starting another", st.ActiveTaskID))
	}
	rec, err := c.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != task.StatusPending {
		return nil, cerr.NewError(cerr.FocusViolation,
			fmt.Sprintf("task %d is %s, only pending tasks can be started", id, rec.Status), nil)
	}
	if c.cfg.RequireDependencyCompletion {
		unmet, err := c.unmetDependencies(ctx, rec)
		if err != nil {
			return nil, err
		}
		if len(unmet) > 0 {
			return nil, cerr.NewErrorWithHint(cerr.FocusViolation,
				fmt.Sprintf("task %d has unmet dependencies: %s", id, joinIDs(unmet)),
				nil, "complete the dependencies first or disable require_dependency_completion")
		}
	}
	rec.Status = task.StatusActive
	if err := c.tasks.Update(ctx, rec); err != nil {
		return nil, err
	}
	now := c.now()
	st.ActiveTaskID = id
	st.TaskStartedAt = now
	st.FilesTouchedToday = nil
	st.TouchedDate = now.Format("2006-01-02")
	st.TimeoutWarned = false
	st.timeoutJustWarned = false
	st.LastActivity = now
	return rec, nil
}

// CheckTimeout reports whether the active task has exceeded its time budget.
// The first detection returns a warning message and the check is still
// allowed through; from the next check on CheckCommand blocks new files
// until the task is completed.
func (c *Controller) CheckTimeout(st *SessionState) (warning string) {
	st.timeoutJustWarned = false
	if st.ActiveTaskID == 0 || c.cfg.TaskTimeoutMinutes <= 0 {
		return ""
	}
	elapsed := c.now().Sub(st.TaskStartedAt)
	if elapsed <= time.Duration(c.cfg.TaskTimeoutMinutes)*time.Minute {
		return ""
	}
	if st.TimeoutWarned {
		return ""
	}
	st.TimeoutWarned = true
	st.timeoutJustWarned = true
	return fmt.Sprintf("task %d has been active for %s, over the %d minute budget; wrap it up and complete it",
		st.ActiveTaskID, elapsed.Round(time.Minute), c.cfg.TaskTimeoutMinutes)
}

// CheckCommand decides whether a command touching the given paths is allowed.
// Paths already touched today always stay permitted; new paths are subject to
// the file limit, the timeout block and the no-active-task policy.
func (c *Controller) CheckCommand(st *SessionState, paths []string) error {
	newPaths := c.newPaths(st, paths)
	if len(newPaths) == 0 {
		return nil
	}
	if st.ActiveTaskID == 0 {
		if c.cfg.AllowUntaskedWork {
			return nil
		}
		return cerr.NewErrorWithHint(cerr.FocusViolation,
			"no active task, file changes are not allowed",
			nil, "start a task with `taskguard start <id>` or enable allow_untasked_work")
	}
	if st.TimeoutWarned && !st.timeoutJustWarned && c.timedOut(st) {
		return cerr.NewErrorWithHint(cerr.FocusViolation,
			fmt.Sprintf("task %d exceeded its %d minute budget, new files are blocked",
				st.ActiveTaskID, c.cfg.TaskTimeoutMinutes),
			nil, fmt.Sprintf("complete task %d to continue", st.ActiveTaskID))
	}
	if c.cfg.MaxFilesPerTask > 0 && len(st.FilesTouchedToday)+len(newPaths) > c.cfg.MaxFilesPerTask {
		return cerr.NewErrorWithHint(cerr.FocusViolation,
			fmt.Sprintf("task %d would touch %d files, over the limit of %d",
				st.ActiveTaskID, len(st.FilesTouchedToday)+len(newPaths), c.cfg.MaxFilesPerTask),
			nil, "complete the current task or split the work into smaller tasks")
	}
	return nil
}

// RecordTouched adds the paths to today's touched set after the caller has
// actually executed the command.
func (c *Controller) RecordTouched(st *SessionState, paths []string) {
	now := c.now()
	for _, p := range c.newPaths(st, paths) {
		st.FilesTouchedToday = append(st.FilesTouchedToday, p)
	}
	st.TouchedDate = now.Format("2006-01-02")
	st.LastActivity = now
}

// CompleteResult reports the outcome of a completion.
type CompleteResult struct {
	Task             *task.Record
	AlreadyCompleted bool
	Suggested        *task.Record
}

// Complete finishes the task with the given id, or the active task when id is
// 0. Completing an already-completed task is a no-op and appends no duplicate
// changelog entry.
func (c *Controller) Complete(ctx context.Context, st *SessionState, id int) (*CompleteResult, error) {
	if id == 0 {
		if st.ActiveTaskID == 0 {
			return nil, cerr.NewErrorWithHint(cerr.FocusViolation, "no active task to complete",
				nil, "start a task first or pass an explicit task id")
		}
		id = st.ActiveTaskID
	}
	rec, err := c.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == task.StatusCompleted {
		suggested, err := c.SuggestNext(ctx)
		if err != nil {
			return nil, err
		}
		return &CompleteResult{Task: rec, AlreadyCompleted: true, Suggested: suggested}, nil
	}
	now := c.now()
	rec.Status = task.StatusCompleted
	rec.CompletedAt = &now
	if err := c.tasks.Update(ctx, rec); err != nil {
		return nil, err
	}
	if c.cfg.AutoChangelog {
		entry := task.ChangelogEntry{
			Date:        now.Format("2006-01-02"),
			Type:        changeTypeFor(rec),
			Description: rec.Title,
		}
		if err := c.tasks.AppendChangelog(ctx, entry); err != nil {
			return nil, err
		}
	}
	if st.ActiveTaskID == id {
		st.ActiveTaskID = 0
		st.TaskStartedAt = time.Time{}
		st.FilesTouchedToday = nil
		st.TimeoutWarned = false
		st.timeoutJustWarned = false
	}
	st.LastActivity = now
	suggested, err := c.SuggestNext(ctx)
	if err != nil {
		return nil, err
	}
	return &CompleteResult{Task: rec, Suggested: suggested}, nil
}

// SuggestNext picks the next pending task: highest priority first, then
// fewest unmet dependencies, then lowest id.
func (c *Controller) SuggestNext(ctx context.Context) (*task.Record, error) {
	records, err := c.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	completed := make(map[int]bool, len(records))
	for _, r := range records {
		if r.Status == task.StatusCompleted {
			completed[r.ID] = true
		}
	}
	var candidates []*task.Record
	unmetCount := make(map[int]int)
	for _, r := range records {
		if r.Status != task.StatusPending {
			continue
		}
		for _, dep := range r.Dependencies {
			if !completed[dep] {
				unmetCount[r.ID]++
			}
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if unmetCount[a.ID] != unmetCount[b.ID] {
			return unmetCount[a.ID] < unmetCount[b.ID]
		}
		return a.ID < b.ID
	})
	return candidates[0], nil
}

// Report is the focus status shown by the CLI.
type Report struct {
	Active        *task.Record
	Elapsed       time.Duration
	FilesUsed     int
	FilesLimit    int
	TimedOut      bool
	TimeoutBudget time.Duration
}

// Status summarizes the current session against the focus policy.
func (c *Controller) Status(ctx context.Context, st *SessionState) (*Report, error) {
	r := &Report{
		FilesUsed:     len(st.FilesTouchedToday),
		FilesLimit:    c.cfg.MaxFilesPerTask,
		TimeoutBudget: time.Duration(c.cfg.TaskTimeoutMinutes) * time.Minute,
	}
	if st.ActiveTaskID == 0 {
		return r, nil
	}
	rec, err := c.tasks.Get(ctx, st.ActiveTaskID)
	if err != nil {
		return nil, err
	}
	r.Active = rec
	r.Elapsed = c.now().Sub(st.TaskStartedAt)
	r.TimedOut = c.timedOut(st)
	return r, nil
}

func (c *Controller) timedOut(st *SessionState) bool {
	if c.cfg.TaskTimeoutMinutes <= 0 {
		return false
	}
	return c.now().Sub(st.TaskStartedAt) > time.Duration(c.cfg.TaskTimeoutMinutes)*time.Minute
}

func (c *Controller) newPaths(st *SessionState, paths []string) []string {
	var out []string
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if p == "." || seen[p] || st.Touched(p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (c *Controller) unmetDependencies(ctx context.Context, rec *task.Record) ([]int, error) {
	if len(rec.Dependencies) == 0 {
		return nil, nil
	}
	records, err := c.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	completed := make(map[int]bool, len(records))
	for _, r := range records {
		if r.Status == task.StatusCompleted {
			completed[r.ID] = true
		}
	}
	var unmet []int
	for _, dep := range rec.Dependencies {
		if !completed[dep] {
			unmet = append(unmet, dep)
		}
	}
	return unmet, nil
}

func changeTypeFor(rec *task.Record) task.ChangeType {
	switch strings.ToLower(rec.Category) {
	case "bugfix", "bug", "fix":
		return task.ChangeBugfix
	case "refactoring", "refactor", "chore":
		return task.ChangeChange
	default:
		return task.ChangeFeature
	}
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
