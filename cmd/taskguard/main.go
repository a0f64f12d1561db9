package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/wronai/taskguard/pkg/cerr"
	"github.com/wronai/taskguard/pkg/clog"
)

var (
	app = kingpin.New("taskguard", "Command interception and focus policy for coding agents")

	initCmd = app.Command("init", "Create the project configuration and state directory")

	tasksCmd = app.Command("tasks", "List tasks and the suggested next one")

	startCmd = app.Command("start", "Start working on a task")
	startID  = startCmd.Arg("id", "Task ID").Required().Int()

	completeCmd = app.Command("complete", "Complete the active task")
	completeID  = completeCmd.Arg("id", "Task ID (defaults to the active task)").Int()

	addCmd         = app.Command("add", "Add a new task")
	addTitle       = addCmd.Arg("title", "Task title").Required().String()
	addCategory    = addCmd.Flag("category", "Task category").Default("feature").String()
	addPriority    = addCmd.Flag("priority", "Task priority").Default("medium").String()
	addDescription = addCmd.Flag("description", "Task description").String()

	parseCmd       = app.Command("parse", "Parse a planning document and merge its tasks")
	parseFile      = parseCmd.Arg("file", "Document to parse").Required().ExistingFile()
	parseHeuristic = parseCmd.Flag("heuristic-only", "Skip the AI strategy").Bool()
	parseDryRun    = parseCmd.Flag("dry-run", "Show what would be merged without writing").Bool()

	analyzeCmd  = app.Command("analyze", "Run the best-practice analysis")
	analyzePath = analyzeCmd.Arg("path", "Directory to analyze").Default(".").String()

	checkCmd  = app.Command("check", "Evaluate a command without running it")
	checkArgs = checkCmd.Arg("command", "Command to evaluate").Required().Strings()

	execCmd  = app.Command("exec", "Evaluate a command and run it when allowed")
	execArgs = execCmd.Arg("command", "Command to run").Required().Strings()

	focusCmd = app.Command("focus", "Show the focus status")

	rollbackCmd = app.Command("rollback", "Restore files from a checkpoint")
	rollbackID  = rollbackCmd.Flag("checkpoint", "Checkpoint ID (defaults to the latest)").String()

	diffCmd  = app.Command("diff", "Diff a file against its checkpointed version")
	diffFile = diffCmd.Arg("file", "File to diff").Required().String()
	diffID   = diffCmd.Flag("checkpoint", "Checkpoint ID (defaults to the latest)").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = clog.ContextWithSlog(ctx)
	clog.AddAttribute(ctx, "command", command)

	rt, err := newRuntime(ctx)
	if err != nil {
		fatal(err)
	}
	defer rt.Close()

	switch command {
	case initCmd.FullCommand():
		err = runInit(ctx, rt)
	case tasksCmd.FullCommand():
		err = runTasks(ctx, rt)
	case startCmd.FullCommand():
		err = runStart(ctx, rt, *startID)
	case completeCmd.FullCommand():
		err = runComplete(ctx, rt, *completeID)
	case addCmd.FullCommand():
		err = runAdd(ctx, rt, *addTitle, *addCategory, *addPriority, *addDescription)
	case parseCmd.FullCommand():
		err = runParse(ctx, rt, *parseFile, *parseHeuristic, *parseDryRun)
	case analyzeCmd.FullCommand():
		err = runAnalyze(ctx, rt, *analyzePath)
	case checkCmd.FullCommand():
		err = runCheck(ctx, rt, strings.Join(*checkArgs, " "))
	case execCmd.FullCommand():
		err = runExec(ctx, rt, *execArgs)
	case focusCmd.FullCommand():
		err = runFocus(ctx, rt)
	case rollbackCmd.FullCommand():
		err = runRollback(ctx, rt, *rollbackID)
	case diffCmd.FullCommand():
		err = runDiff(ctx, rt, *diffID, *diffFile)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
	if hint := cerr.HintOf(err); hint != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("hint:"), hint)
	}
	os.Exit(cerr.CodeOf(err).ExitCode())
}

// exitCodeError propagates a child process exit status without re-printing
// anything.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
