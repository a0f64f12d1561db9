package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/wronai/taskguard/pkg/cerr"
)

// watchExcluded are directories the exec watcher never descends into.
var watchExcluded = map[string]bool{
	".git":         true,
	".taskguard":   true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"vendor":       true,
}

func runExec(ctx context.Context, rt *runtime, argv []string) error {
	st, err := rt.loadState(ctx)
	if err != nil {
		return err
	}
	command := strings.Join(argv, " ")
	decision := rt.ic.Evaluate(ctx, command, rt.cwd, st)
	printDecision(decision)
	if decision.Blocked() {
		if err := rt.saveState(ctx, st); err != nil {
			return err
		}
		return cerr.NewErrorWithHint(cerr.Blocked, decision.Reason, nil, decision.Hint)
	}

	watcher, err := newTreeWatcher(rt.cwd)
	if err != nil {
		// The command still runs; only the touched-file accounting degrades
		// to the predicted paths.
		rt.logger.Warn("file watcher unavailable", "error", err.Error())
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = rt.cwd
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()

	touched := decision.PredictedPaths
	if watcher != nil {
		if observed := watcher.Stop(); len(observed) > 0 {
			touched = append(touched, observed...)
		}
	}
	rt.controller.RecordTouched(st, touched)
	if err := rt.saveState(ctx, st); err != nil {
		return err
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return &exitCodeError{code: exitErr.ExitCode()}
		}
		return cerr.NewError(cerr.Internal, "failed to run "+argv[0], runErr)
	}
	return nil
}

// treeWatcher records files created or written under a root while a child
// process runs.
type treeWatcher struct {
	root    string
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	touched map[string]bool
	done    chan struct{}
}

func newTreeWatcher(root string) (*treeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	tw := &treeWatcher{
		root:    root,
		watcher: w,
		touched: make(map[string]bool),
		done:    make(chan struct{}),
	}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if watchExcluded[d.Name()] {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	go tw.loop()
	return tw, nil
}

func (tw *treeWatcher) loop() {
	defer close(tw.done)
	for {
		select {
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				// New directories get watched too so nested writes are seen.
				if !watchExcluded[filepath.Base(event.Name)] {
					_ = tw.watcher.Add(event.Name)
				}
				continue
			}
			rel, err := filepath.Rel(tw.root, event.Name)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			if top := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]; watchExcluded[top] {
				continue
			}
			tw.mu.Lock()
			tw.touched[rel] = true
			tw.mu.Unlock()
		case _, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Stop closes the watcher and returns the observed paths, sorted for
// deterministic accounting.
func (tw *treeWatcher) Stop() []string {
	_ = tw.watcher.Close()
	<-tw.done
	tw.mu.Lock()
	defer tw.mu.Unlock()
	out := make([]string, 0, len(tw.touched))
	for p := range tw.touched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
