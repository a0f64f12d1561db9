package docparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wronai/taskguard/internal/task"
)

// The heuristic strategy recognizes common planning-document conventions
// deterministically: checkbox markers, status and priority symbols, key:value
// detail lines and indented subtasks. It only fills fields it can establish
// with confidence.

var (
	taskMarkers   = []string{"- [ ]", "- [x]", "- [X]", "☐", "✅", "⏳"}
	symbolCleaner = strings.NewReplacer("🔴", "", "🟡", "", "🟢", "")
	spaceSqueezer = regexp.MustCompile(`\s+`)
	dateHeader    = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
	versionRe     = regexp.MustCompile(`\d+\.\d+\.\d+`)
	keyValueRe    = regexp.MustCompile(`^(\w[\w ]*):\s*(.+)$`)
)

// HeuristicTasks extracts task records from free-text content. Records carry
// no ids; merging assigns them. Identical content always yields an identical
// record set.
func HeuristicTasks(content string) []*task.Record {
	var tasks []*task.Record
	var current *task.Record
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if hasTaskMarker(line) {
			current = &task.Record{
				Title:    cleanTitle(line),
				Status:   statusOf(line),
				Priority: priorityOf(line),
				Category: "feature",
			}
			if current.Title != "" {
				tasks = append(tasks, current)
			} else {
				current = nil
			}
			continue
		}
		if current == nil {
			continue
		}
		indented := raw != line
		if indented && strings.HasPrefix(line, "- ") {
			current.Subtasks = append(current.Subtasks, strings.TrimSpace(line[2:]))
			continue
		}
		if indented {
			if m := keyValueRe.FindStringSubmatch(line); m != nil {
				applyDetail(current, strings.ToLower(strings.TrimSpace(m[1])), strings.TrimSpace(m[2]))
			}
		}
	}
	return tasks
}

// HeuristicChangelog extracts typed changelog entries grouped under date
// headers.
func HeuristicChangelog(content string) []task.ChangelogEntry {
	var entries []task.ChangelogEntry
	date := ""
	version := ""
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if m := dateHeader.FindStringSubmatch(line); m != nil {
				date = m[1]
				version = versionRe.FindString(strings.Replace(line, date, "", 1))
			}
			continue
		}
		if date == "" || !strings.HasPrefix(line, "-") {
			continue
		}
		entries = append(entries, task.ChangelogEntry{
			Date:        date,
			Version:     version,
			Type:        changeTypeOf(line),
			Description: cleanDescription(line),
		})
	}
	return entries
}

func hasTaskMarker(line string) bool {
	for _, m := range taskMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func statusOf(line string) task.Status {
	switch {
	case strings.Contains(line, "- [x]") || strings.Contains(line, "- [X]") || strings.Contains(line, "✅"):
		return task.StatusCompleted
	case strings.Contains(line, "⏳"):
		return task.StatusActive
	default:
		return task.StatusPending
	}
}

func priorityOf(line string) task.Priority {
	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(line, "🔴") || strings.Contains(upper, "HIGH"):
		return task.PriorityHigh
	case strings.Contains(line, "🟢") || strings.Contains(upper, "LOW"):
		return task.PriorityLow
	default:
		return task.PriorityMedium
	}
}

func changeTypeOf(line string) task.ChangeType {
	switch {
	case strings.Contains(line, "✅") || strings.Contains(line, "Added"):
		return task.ChangeFeature
	case strings.Contains(line, "🐛") || strings.Contains(line, "Fixed"):
		return task.ChangeBugfix
	case strings.Contains(line, "❌") || strings.Contains(line, "Removed"):
		return task.ChangeRemoval
	default:
		return task.ChangeChange
	}
}

func cleanTitle(line string) string {
	for _, m := range taskMarkers {
		line = strings.Replace(line, m, "", 1)
	}
	line = symbolCleaner.Replace(line)
	line = strings.TrimLeft(line, "-[] ")
	return strings.TrimSpace(spaceSqueezer.ReplaceAllString(line, " "))
}

func cleanDescription(line string) string {
	desc := strings.TrimLeft(line, "- ")
	desc = strings.NewReplacer("✅", "", "🐛", "", "❌", "").Replace(desc)
	return strings.TrimSpace(desc)
}

func applyDetail(r *task.Record, key, value string) {
	switch key {
	case "description":
		r.Description = value
	case "category":
		r.Category = strings.ToLower(value)
	case "priority":
		if p := task.Priority(strings.ToLower(value)); p.Valid() {
			r.Priority = p
		}
	case "estimated hours", "estimated_hours", "estimate":
		if hours, err := strconv.ParseFloat(value, 64); err == nil && hours > 0 {
			r.EstimatedHours = hours
		}
	case "labels", "tags":
		for _, l := range strings.Split(value, ",") {
			if l = strings.TrimSpace(l); l != "" {
				r.Labels = append(r.Labels, l)
			}
		}
	}
}
