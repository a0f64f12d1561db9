package docparse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wronai/taskguard/internal/task"
)

// Provenance tags a parse result with the strategy that produced it, for
// downstream trust decisions.
type Provenance string

const (
	ProvenanceAI        Provenance = "ai"
	ProvenanceHeuristic Provenance = "heuristic"
)

// ParseResult is the outcome of parsing one planning document. Warnings carry
// non-fatal degradations such as a heuristic fallback after an inference
// failure.
type ParseResult struct {
	Records    []*task.Record
	Changelog  []task.ChangelogEntry
	Provenance Provenance
	Warnings   []string
}

// Parser converts free-text planning documents into task records. The AI
// strategy is tried first when a client is configured and reachable; any
// failure falls through to the deterministic heuristic, never to the caller.
type Parser struct {
	client queryClient
	logger *slog.Logger
}

func NewParser(client queryClient, logger *slog.Logger) *Parser {
	return &Parser{client: client, logger: logger}
}

// Parse extracts task records and changelog entries from the document.
// heuristicOnly skips the AI strategy entirely.
func (p *Parser) Parse(ctx context.Context, content string, heuristicOnly bool) *ParseResult {
	if !heuristicOnly && p.client != nil {
		if result := p.tryAI(ctx, content); result != nil {
			return result
		}
	}
	result := &ParseResult{
		Records:    HeuristicTasks(content),
		Changelog:  HeuristicChangelog(content),
		Provenance: ProvenanceHeuristic,
	}
	if !heuristicOnly {
		result.Warnings = append(result.Warnings, "inference unavailable, parsed heuristically")
	}
	return result
}

func (p *Parser) tryAI(ctx context.Context, content string) *ParseResult {
	if !p.client.Available(ctx) {
		p.logger.DebugContext(ctx, "inference endpoint unavailable, falling back")
		return nil
	}
	records, err := aiParseTasks(ctx, p.client, content)
	if err != nil {
		p.logger.WarnContext(ctx, "ai parse failed, falling back to heuristic",
			slog.String("error", err.Error()))
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	return &ParseResult{
		Records: records,
		// Changelog extraction stays heuristic: the date grouping is already
		// deterministic and not worth an inference round trip.
		Changelog:  HeuristicChangelog(content),
		Provenance: ProvenanceAI,
	}
}

// Summary renders a one-line description of the result for reports.
func (r *ParseResult) Summary() string {
	return fmt.Sprintf("%d tasks, %d changelog entries (%s)",
		len(r.Records), len(r.Changelog), r.Provenance)
}
