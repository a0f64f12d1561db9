package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wronai/taskguard/internal/config"
	"github.com/wronai/taskguard/internal/interceptor"
	"github.com/wronai/taskguard/internal/task"
	"github.com/wronai/taskguard/pkg/cerr"
)

func runInit(ctx context.Context, rt *runtime) error {
	configPath := filepath.Join(rt.cwd, config.FileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := rt.cfg.Write(rt.cwd); err != nil {
			return err
		}
		fmt.Printf("created %s\n", config.FileName)
	} else {
		fmt.Printf("%s already exists, leaving it untouched\n", config.FileName)
	}
	if err := rt.store.EnsureInitialized(ctx); err != nil {
		return err
	}
	st, err := rt.loadState(ctx)
	if err != nil {
		return err
	}
	if err := rt.saveState(ctx, st); err != nil {
		return err
	}
	fmt.Println(color.GreenString("project initialized"))
	return nil
}

func runTasks(ctx context.Context, rt *runtime) error {
	records, err := rt.store.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no tasks yet, add one with `taskguard add` or import a document with `taskguard parse`")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s #%-3d %-8s %s\n", statusMarker(r.Status), r.ID, r.Priority, r.Title)
	}
	next, err := rt.controller.SuggestNext(ctx)
	if err != nil {
		return err
	}
	if next != nil {
		fmt.Printf("\nsuggested next: #%d %s\n", next.ID, next.Title)
	}
	return nil
}

func statusMarker(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return color.GreenString("✔")
	case task.StatusActive:
		return color.CyanString("▶")
	case task.StatusBlocked:
		return color.RedString("✖")
	default:
		return " "
	}
}

func runStart(ctx context.Context, rt *runtime, id int) error {
	st, err := rt.loadState(ctx)
	if err != nil {
		return err
	}
	rec, err := rt.controller.Start(ctx, st, id)
	if err != nil {
		return err
	}
	if err := rt.saveState(ctx, st); err != nil {
		return err
	}
	fmt.Printf("%s #%d %s\n", color.CyanString("started"), rec.ID, rec.Title)
	if rt.cfg.Focus.MaxFilesPerTask > 0 {
		fmt.Printf("file budget: %d, time budget: %d minutes\n",
			rt.cfg.Focus.MaxFilesPerTask, rt.cfg.Focus.TaskTimeoutMinutes)
	}
	return nil
}

func runComplete(ctx context.Context, rt *runtime, id int) error {
	st, err := rt.loadState(ctx)
	if err != nil {
		return err
	}
	res, err := rt.controller.Complete(ctx, st, id)
	if err != nil {
		return err
	}
	if err := rt.saveState(ctx, st); err != nil {
		return err
	}
	if res.AlreadyCompleted {
		fmt.Printf("#%d %s was already completed\n", res.Task.ID, res.Task.Title)
	} else {
		fmt.Printf("%s #%d %s\n", color.GreenString("completed"), res.Task.ID, res.Task.Title)
	}
	if res.Suggested != nil {
		fmt.Printf("suggested next: #%d %s\n", res.Suggested.ID, res.Suggested.Title)
	}
	return nil
}

func runAdd(ctx context.Context, rt *runtime, title, category, priority, description string) error {
	rec := &task.Record{
		Title:       title,
		Category:    strings.ToLower(category),
		Priority:    task.Priority(strings.ToLower(priority)),
		Status:      task.StatusPending,
		Description: description,
	}
	added, err := rt.store.Add(ctx, rec)
	if err != nil {
		return err
	}
	fmt.Printf("%s #%d %s\n", color.GreenString("added"), added.ID, added.Title)
	return nil
}

func runParse(ctx context.Context, rt *runtime, file string, heuristicOnly, dryRun bool) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to read "+file, err)
	}
	result := rt.parser.Parse(ctx, string(content), heuristicOnly)
	fmt.Printf("parsed %s: %s\n", file, result.Summary())
	for _, w := range result.Warnings {
		fmt.Println(color.YellowString("warning: " + w))
	}
	if dryRun {
		for _, r := range result.Records {
			fmt.Printf("  %-9s %-8s %s\n", r.Status, r.Priority, r.Title)
		}
		return nil
	}
	added, updated, err := rt.store.Merge(ctx, result.Records)
	if err != nil {
		return err
	}
	for _, e := range result.Changelog {
		if err := rt.store.AppendChangelog(ctx, e); err != nil {
			return err
		}
	}
	fmt.Printf("merged: %d added, %d updated\n", added, updated)
	return nil
}

func runAnalyze(ctx context.Context, rt *runtime, path string) error {
	started := time.Now()
	violations, err := rt.engine.AnalyzeDir(ctx, path)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		fmt.Println(color.GreenString("no violations found"))
		return nil
	}
	for _, v := range violations {
		fmt.Printf("%s:%d %s %s\n    %s\n",
			v.File, v.Line, color.YellowString("["+v.Rule+"]"), v.Message, v.Remediation)
	}
	fmt.Printf("\n%d violations in %s\n", len(violations), time.Since(started).Round(time.Millisecond))
	return nil
}

func runCheck(ctx context.Context, rt *runtime, command string) error {
	st, err := rt.loadState(ctx)
	if err != nil {
		return err
	}
	decision := rt.ic.Evaluate(ctx, command, rt.cwd, st)
	// Persist the timeout-warned flag so a repeated check escalates.
	if err := rt.saveState(ctx, st); err != nil {
		return err
	}
	printDecision(decision)
	if decision.Blocked() {
		return cerr.NewErrorWithHint(cerr.Blocked, decision.Reason, nil, decision.Hint)
	}
	return nil
}

func runFocus(ctx context.Context, rt *runtime) error {
	st, err := rt.loadState(ctx)
	if err != nil {
		return err
	}
	report, err := rt.controller.Status(ctx, st)
	if err != nil {
		return err
	}
	if report.Active == nil {
		fmt.Println("no active task")
		next, err := rt.controller.SuggestNext(ctx)
		if err != nil {
			return err
		}
		if next != nil {
			fmt.Printf("suggested next: #%d %s\n", next.ID, next.Title)
		}
		return nil
	}
	fmt.Printf("active: #%d %s\n", report.Active.ID, report.Active.Title)
	fmt.Printf("elapsed: %s of %s", report.Elapsed.Round(time.Second), report.TimeoutBudget)
	if report.TimedOut {
		fmt.Print(color.RedString(" (over budget)"))
	}
	fmt.Println()
	fmt.Printf("files: %d of %d\n", report.FilesUsed, report.FilesLimit)
	return nil
}

func runRollback(ctx context.Context, rt *runtime, id string) error {
	restored, err := rt.checkpoints.Restore(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range restored {
		fmt.Printf("restored %s\n", p)
	}
	fmt.Println(color.GreenString("rollback complete"))
	return nil
}

func runDiff(ctx context.Context, rt *runtime, id, file string) error {
	diff, err := rt.checkpoints.Diff(ctx, id, file)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Println("no changes since the checkpoint")
		return nil
	}
	fmt.Print(diff)
	return nil
}

func printDecision(d *interceptor.Decision) {
	switch d.Verdict {
	case interceptor.VerdictBlock:
		fmt.Printf("%s %s\n", color.RedString("BLOCK"), d.Reason)
		if d.Hint != "" {
			fmt.Printf("%s %s\n", color.YellowString("hint:"), d.Hint)
		}
	case interceptor.VerdictAllowWithWarnings:
		fmt.Println(color.YellowString("ALLOW with warnings"))
		for _, w := range d.Warnings {
			fmt.Println("  warning: " + w)
		}
		for _, v := range d.Violations {
			fmt.Printf("  advisory: %s:%d [%s] %s\n", v.File, v.Line, v.Rule, v.Message)
		}
	default:
		fmt.Println(color.GreenString("ALLOW"))
	}
	if d.CheckpointID != "" {
		fmt.Printf("checkpoint: %s\n", d.CheckpointID)
	}
}
