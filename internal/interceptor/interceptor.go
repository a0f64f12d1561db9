package interceptor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/wronai/taskguard/internal/checkpoint"
	"github.com/wronai/taskguard/internal/focus"
	"github.com/wronai/taskguard/internal/practice"
	"github.com/wronai/taskguard/internal/scanner"
	"github.com/wronai/taskguard/pkg/cerr"
)

// Verdict is the outcome of evaluating one command.
type Verdict string

const (
	VerdictAllow             Verdict = "allow"
	VerdictAllowWithWarnings Verdict = "allow_with_warnings"
	VerdictBlock             Verdict = "block"
)

// Decision is what the caller acts on: run the command, run it with the
// warnings surfaced, or refuse.
type Decision struct {
	Verdict        Verdict
	Reason         string
	Hint           string
	Findings       []scanner.Finding
	Violations     []practice.Violation
	Warnings       []string
	PredictedPaths []string
	CheckpointID   string
	AuditID        string
}

// Blocked reports whether the command must not run.
func (d *Decision) Blocked() bool {
	return d.Verdict == VerdictBlock
}

// Interceptor is the single boundary every candidate command passes through.
type Interceptor struct {
	scanner     *scanner.Scanner
	focus       *focus.Controller
	practice    *practice.Engine
	checkpoints *checkpoint.Manager
	logger      *slog.Logger
	audit       *slog.Logger
}

// New wires the pipeline. audit may be nil to disable the audit trail;
// checkpoints may be nil to disable pre-command backups.
func New(sc *scanner.Scanner, fc *focus.Controller, pe *practice.Engine,
	cp *checkpoint.Manager, logger, audit *slog.Logger) *Interceptor {
	return &Interceptor{
		scanner:     sc,
		focus:       fc,
		practice:    pe,
		checkpoints: cp,
		logger:      logger,
		audit:       audit,
	}
}

// Evaluate runs the pipeline for one command: pattern scan, focus policy,
// then advisory best-practice analysis. The first block short-circuits. The
// decision is always audited, whatever the verdict.
func (ic *Interceptor) Evaluate(ctx context.Context, command, cwd string, st *focus.SessionState) *Decision {
	d := &Decision{
		Verdict: VerdictAllow,
		AuditID: ulid.Make().String(),
	}
	defer ic.writeAudit(ctx, command, d)

	d.Findings = ic.scanner.Scan(command)
	for _, f := range d.Findings {
		if f.Severity == scanner.SeverityBlock {
			d.Verdict = VerdictBlock
			d.Reason = fmt.Sprintf("pattern %s matched %q", f.PatternID, f.MatchedText)
			if f.DecodeDepth > 0 {
				d.Reason += fmt.Sprintf(" (inside an encoded payload, %d decode passes)", f.DecodeDepth)
			}
			return d
		}
		d.Warnings = append(d.Warnings,
			fmt.Sprintf("pattern %s: %q", f.PatternID, f.MatchedText))
	}

	d.PredictedPaths = PredictPaths(command)

	if warning := ic.focus.CheckTimeout(st); warning != "" {
		d.Warnings = append(d.Warnings, warning)
	}
	if err := ic.focus.CheckCommand(st, d.PredictedPaths); err != nil {
		d.Verdict = VerdictBlock
		d.Reason = err.Error()
		d.Hint = cerr.HintOf(err)
		return d
	}

	ic.advise(d, cwd)

	if ic.checkpoints != nil && len(d.PredictedPaths) > 0 {
		manifest, err := ic.checkpoints.Create(ctx, command, d.PredictedPaths)
		if err != nil {
			// Checkpoint failure never blocks, the command just runs without
			// a safety net.
			d.Warnings = append(d.Warnings, "checkpoint failed: "+err.Error())
		} else if manifest != nil {
			d.CheckpointID = manifest.ID
		}
	}

	if len(d.Warnings) > 0 || len(d.Violations) > 0 {
		d.Verdict = VerdictAllowWithWarnings
	}
	return d
}

// advise runs the best-practice engine over predicted files that already
// exist. Violations are advisory and never change the verdict to block.
func (ic *Interceptor) advise(d *Decision, cwd string) {
	for _, p := range d.PredictedPaths {
		lang := practice.LanguageForPath(p)
		if lang == "" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(cwd, p))
		if err != nil {
			continue
		}
		d.Violations = append(d.Violations, ic.practice.Evaluate(p, lang, string(content))...)
	}
}

func (ic *Interceptor) writeAudit(ctx context.Context, command string, d *Decision) {
	if ic.audit == nil {
		return
	}
	patterns := make([]string, 0, len(d.Findings))
	for _, f := range d.Findings {
		patterns = append(patterns, f.PatternID)
	}
	ic.audit.LogAttrs(ctx, slog.LevelInfo, "decision",
		slog.String("audit_id", d.AuditID),
		slog.String("verdict", string(d.Verdict)),
		slog.String("command", command),
		slog.String("reason", d.Reason),
		slog.String("patterns", strings.Join(patterns, ",")),
		slog.Int("violations", len(d.Violations)),
		slog.String("checkpoint_id", d.CheckpointID),
	)
}
