package practice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wronai/taskguard/internal/config"
)

func testEngine() *Engine {
	return NewEngine(config.Default().BestPractices)
}

func rulesOf(t *testing.T, violations []Violation) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, v := range violations {
		out[v.Rule]++
	}
	return out
}

func TestEvaluatePython(t *testing.T) {
	content := `def ProcessData(raw):
    return raw.strip()

def fetch_items(limit: int) -> list:
    """Fetch up to limit items."""
    return []
`
	violations := testEngine().Evaluate("app.py", "python", content)
	rules := rulesOf(t, violations)
	if rules["doc-comments"] != 1 {
		t.Errorf("doc-comments = %d, want 1: %v", rules["doc-comments"], violations)
	}
	if rules["type-annotations"] != 1 {
		t.Errorf("type-annotations = %d, want 1: %v", rules["type-annotations"], violations)
	}
	if rules["naming"] != 1 {
		t.Errorf("naming = %d, want 1: %v", rules["naming"], violations)
	}
	for _, v := range violations {
		if v.Remediation == "" {
			t.Errorf("violation %v has no remediation", v)
		}
		if v.Line != 1 {
			t.Errorf("violation %v on line %d, want 1", v.Rule, v.Line)
		}
	}
}

func TestEvaluatePythonFunctionLength(t *testing.T) {
	var b strings.Builder
	b.WriteString("def long_one():\n")
	b.WriteString("    \"\"\"Doc.\"\"\"\n")
	for i := 0; i < 55; i++ {
		b.WriteString("    x = 1\n")
	}
	violations := testEngine().Evaluate("app.py", "python", b.String())
	if rulesOf(t, violations)["function-length"] != 1 {
		t.Errorf("want one function-length violation, got %v", violations)
	}
}

func TestEvaluateJavascript(t *testing.T) {
	content := `function do_fetch(url) {
  const data = await fetch(url);
  return data;
}
`
	violations := testEngine().Evaluate("app.js", "javascript", content)
	rules := rulesOf(t, violations)
	for _, want := range []string{"doc-comments", "naming", "error-handling"} {
		if rules[want] == 0 {
			t.Errorf("missing %s violation: %v", want, violations)
		}
	}
}

func TestEvaluateGo(t *testing.T) {
	content := `package demo

func Exported_thing() error {
	return nil
}

// helper does a small thing.
func helper() {}
`
	violations := testEngine().Evaluate("demo.go", "go", content)
	rules := rulesOf(t, violations)
	if rules["doc-comments"] != 1 {
		t.Errorf("doc-comments = %d, want 1: %v", rules["doc-comments"], violations)
	}
	if rules["naming"] != 1 {
		t.Errorf("naming = %d, want 1: %v", rules["naming"], violations)
	}
}

func TestEvaluateHardcodedValues(t *testing.T) {
	content := `api_key = "sk-123456789"

def get(url):
    """Get."""
    return url
`
	violations := testEngine().Evaluate("cfg.py", "python", content)
	if rulesOf(t, violations)["hardcoded-values"] != 1 {
		t.Errorf("want one hardcoded-values violation, got %v", violations)
	}
}

func TestEvaluateCleanFile(t *testing.T) {
	content := `def fetch_items(limit: int) -> list:
    """Fetch up to limit items."""
    return []
`
	if violations := testEngine().Evaluate("ok.py", "python", content); len(violations) != 0 {
		t.Errorf("clean file produced %v", violations)
	}
}

func TestEvaluateUnknownLanguage(t *testing.T) {
	if violations := testEngine().Evaluate("notes.txt", "", "whatever"); violations != nil {
		t.Errorf("unknown language produced %v", violations)
	}
}

func TestLanguageForPath(t *testing.T) {
	tests := map[string]string{
		"a/b.py":   "python",
		"x.ts":     "javascript",
		"main.go":  "go",
		"README":   "",
		"notes.md": "",
	}
	for path, want := range tests {
		if got := LanguageForPath(path); got != want {
			t.Errorf("LanguageForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestAnalyzeDir(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("src/app.py", "def Bad(x):\n    return x\n")
	write("src/ok.py", "def good(x: int) -> int:\n    \"\"\"Doc.\"\"\"\n    return x\n")
	write("node_modules/dep.js", "function untouched() {}\n")
	write("README.md", "# readme\n")

	violations, err := testEngine().AnalyzeDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(violations) == 0 {
		t.Fatal("want violations from src/app.py")
	}
	for _, v := range violations {
		if strings.Contains(v.File, "node_modules") {
			t.Errorf("excluded directory was analyzed: %v", v)
		}
		if v.File != filepath.Join("src", "app.py") {
			t.Errorf("unexpected file %s in %v", v.File, v)
		}
	}
}
