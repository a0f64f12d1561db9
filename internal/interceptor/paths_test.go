package interceptor

import (
	"reflect"
	"testing"
)

func TestPredictPaths(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"vim src/main.go", []string{"src/main.go"}},
		{"cp a.txt b.txt", []string{"a.txt", "b.txt"}},
		{"sed -i 's/a/b/' internal/app.py", []string{"internal/app.py"}},
		{"echo hello > out.log", []string{"out.log"}},
		{"git status", nil},
		{"ls -la", nil},
		{"curl https://example.com/x.tar.gz", nil},
		{"rm *.go", nil},
		{"cat $FILE", nil},
		{"touch a.go a.go", []string{"a.go"}},
		{`python "my script.py"`, []string{"my script.py"}},
	}
	for _, tt := range tests {
		if got := PredictPaths(tt.command); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PredictPaths(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestPredictPathsUnparseable(t *testing.T) {
	// A syntax error falls back to token splitting.
	got := PredictPaths("vim src/main.go ((")
	if len(got) != 1 || got[0] != "src/main.go" {
		t.Errorf("PredictPaths = %v, want [src/main.go]", got)
	}
}

func TestLooksLikePath(t *testing.T) {
	yes := []string{"a/b", "main.go", "x.tar.gz", "./run.sh", "dir/file"}
	no := []string{"-f", "--force", "git", "hello", ".", "..", "/", "http://x/y.go", "1.5", "*.go"}
	for _, tok := range yes {
		if !looksLikePath(tok) {
			t.Errorf("looksLikePath(%q) = false, want true", tok)
		}
	}
	for _, tok := range no {
		if looksLikePath(tok) {
			t.Errorf("looksLikePath(%q) = true, want false", tok)
		}
	}
}
