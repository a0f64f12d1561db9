package docparse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wronai/taskguard/internal/task"
	"github.com/wronai/taskguard/pkg/cerr"
)

const taskSystemPrompt = `You are a TODO list parser. Extract tasks from any format (markdown, plain text, YAML) and return valid JSON.

REQUIRED JSON FORMAT:
[
  {
    "title": "Task title",
    "status": "pending|in_progress|completed",
    "priority": "critical|high|medium|low|backlog",
    "category": "feature|bugfix|refactor|test|docs",
    "description": "Task description",
    "subtasks": ["subtask1", "subtask2"],
    "estimated_hours": 2.5,
    "labels": ["label1", "label2"]
  }
]

Rules:
- Always return valid JSON array
- Extract ALL tasks found
- Infer missing fields logically
- Status from: ☐ pending, ⏳ in_progress, ✅ completed
- Priority from: 🔴 high, 🟡 medium, 🟢 low`

// queryClient is the inference surface the AI strategy needs.
type queryClient interface {
	Available(ctx context.Context) bool
	Query(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// aiTask is the extraction schema the model is asked to produce. Every field
// is re-validated before the records are trusted.
type aiTask struct {
	Title          string   `json:"title"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	Subtasks       []string `json:"subtasks"`
	EstimatedHours float64  `json:"estimated_hours"`
	Labels         []string `json:"labels"`
}

func aiParseTasks(ctx context.Context, client queryClient, content string) ([]*task.Record, error) {
	prompt := fmt.Sprintf("Parse this TODO content and extract all tasks:\n\n%s\n\nReturn only valid JSON array, no explanations.", content)
	reply, err := client.Query(ctx, taskSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	var parsed []aiTask
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		return nil, cerr.NewError(cerr.Validation, "inference reply is not a task array", err)
	}
	records := make([]*task.Record, 0, len(parsed))
	for i, t := range parsed {
		rec, err := t.toRecord()
		if err != nil {
			return nil, cerr.NewError(cerr.Validation,
				fmt.Sprintf("inference task %d failed validation", i), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (t aiTask) toRecord() (*task.Record, error) {
	rec := &task.Record{
		Title:          strings.TrimSpace(t.Title),
		Status:         mapStatus(t.Status),
		Priority:       mapPriority(t.Priority),
		Category:       strings.ToLower(t.Category),
		Description:    t.Description,
		Subtasks:       t.Subtasks,
		EstimatedHours: t.EstimatedHours,
		Labels:         t.Labels,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func mapStatus(s string) task.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending", "todo", "open":
		return task.StatusPending
	case "in_progress", "in-progress", "active", "doing":
		return task.StatusActive
	case "blocked":
		return task.StatusBlocked
	case "completed", "done", "closed":
		return task.StatusCompleted
	default:
		return task.Status(s)
	}
}

func mapPriority(p string) task.Priority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "":
		return task.PriorityMedium
	case "urgent":
		return task.PriorityCritical
	default:
		return task.Priority(strings.ToLower(strings.TrimSpace(p)))
	}
}

// extractJSON strips a markdown code fence around the reply when present and
// otherwise cuts from the first bracket to the last, which tolerates chatty
// prefixes and suffixes.
func extractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) > 2 {
			s = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	start := strings.IndexAny(s, "[{")
	end := strings.LastIndexAny(s, "]}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
