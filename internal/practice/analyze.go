package practice

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sourcegraph/conc"

	"github.com/wronai/taskguard/pkg/cerr"
)

// excludedDirs are skipped during directory analysis.
var excludedDirs = map[string]bool{
	".git":         true,
	".taskguard":   true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".idea":        true,
}

// AnalyzeDir walks root and evaluates every supported source file
// concurrently. The result is ordered by file path regardless of completion
// order.
func (e *Engine) AnalyzeDir(ctx context.Context, root string) ([]Violation, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if LanguageForPath(path) == "" {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to walk "+root, err)
	}

	results := make([][]Violation, len(files))
	wg := conc.NewWaitGroup()
	for i, path := range files {
		i, path := i, path
		wg.Go(func() {
			if ctx.Err() != nil {
				return
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			results[i] = e.Evaluate(rel, LanguageForPath(path), string(content))
		})
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, cerr.NewError(cerr.Canceled, "analysis canceled", err)
	}

	var out []Violation
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
