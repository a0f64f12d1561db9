package practice

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/wronai/taskguard/internal/config"
)

// Violation is one advisory best-practice finding. Violations never block a
// command.
type Violation struct {
	File        string
	Line        int
	Rule        string
	Message     string
	Remediation string
}

// Engine evaluates file content against per-language best-practice rules.
// It is stateless and safe for concurrent use.
type Engine struct {
	rules map[string]config.LanguageRules
}

func NewEngine(rules map[string]config.LanguageRules) *Engine {
	return &Engine{rules: rules}
}

// LanguageForPath maps a file extension to a supported language name, or ""
// when the file is not covered.
func LanguageForPath(path string) string {
	switch filepath.Ext(path) {
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs", ".ts", ".tsx":
		return "javascript"
	case ".go":
		return "go"
	}
	return ""
}

// Evaluate returns the violations found in the content, ordered by line. The
// analysis is purely textual and never executes the content.
func (e *Engine) Evaluate(filePath, language, content string) []Violation {
	rules, ok := e.rules[language]
	if !ok {
		return nil
	}
	lines := strings.Split(content, "\n")
	var out []Violation
	switch language {
	case "python":
		out = e.evaluatePython(filePath, lines, rules)
	case "javascript":
		out = e.evaluateJavascript(filePath, lines, rules)
	case "go":
		out = e.evaluateGo(filePath, lines, rules)
	}
	if rules.NoHardcodedValues {
		out = append(out, hardcodedValues(filePath, lines)...)
	}
	sortViolations(out)
	return out
}

var (
	pythonDef    = regexp.MustCompile(`^(\s*)def\s+(\w+)\s*\(([^)]*)`)
	jsFunction   = regexp.MustCompile(`^\s*(async\s+)?function\s+(\w+)\s*\(`)
	goFunc       = regexp.MustCompile(`^func\s+(\(\s*\w+\s+[^)]+\)\s+)?(\w+)\s*\(`)
	snakeCaseRe  = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	camelCaseRe  = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)
	hardcodedRe  = regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|token)\s*[=:]\s*["'][^"']{4,}["']`)
	hardcodedURL = regexp.MustCompile(`["']https?://[^"'\s]+["']`)
)

func (e *Engine) evaluatePython(file string, lines []string, rules config.LanguageRules) []Violation {
	var out []Violation
	for i, line := range lines {
		m := pythonDef.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent, name, params := m[1], m[2], m[3]
		lineNo := i + 1
		if rules.EnforceDocComments && !pythonHasDocstring(lines, i, indent) {
			out = append(out, Violation{
				File: file, Line: lineNo, Rule: "doc-comments",
				Message:     fmt.Sprintf("function %s has no docstring", name),
				Remediation: "add a docstring describing what the function does",
			})
		}
		if rules.EnforceTypeAnnotations && !pythonAnnotated(name, params, line) {
			out = append(out, Violation{
				File: file, Line: lineNo, Rule: "type-annotations",
				Message:     fmt.Sprintf("function %s has unannotated parameters", name),
				Remediation: "annotate parameters and the return type",
			})
		}
		if rules.NamingConvention == "snake_case" && !snakeCaseRe.MatchString(name) && !strings.HasPrefix(name, "__") {
			out = append(out, Violation{
				File: file, Line: lineNo, Rule: "naming",
				Message:     fmt.Sprintf("function %s is not snake_case", name),
				Remediation: "rename to snake_case",
			})
		}
		if rules.MaxFunctionLength > 0 {
			if length := pythonFunctionLength(lines, i, indent); length > rules.MaxFunctionLength {
				out = append(out, overLength(file, lineNo, name, length, rules.MaxFunctionLength))
			}
		}
	}
	return out
}

func (e *Engine) evaluateJavascript(file string, lines []string, rules config.LanguageRules) []Violation {
	var out []Violation
	for i, line := range lines {
		m := jsFunction.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[2]
		lineNo := i + 1
		if rules.EnforceDocComments && !commentAbove(lines, i) {
			out = append(out, Violation{
				File: file, Line: lineNo, Rule: "doc-comments",
				Message:     fmt.Sprintf("function %s has no leading comment", name),
				Remediation: "add a JSDoc comment above the function",
			})
		}
		if rules.NamingConvention == "camelCase" && !camelCaseRe.MatchString(name) {
			out = append(out, Violation{
				File: file, Line: lineNo, Rule: "naming",
				Message:     fmt.Sprintf("function %s is not camelCase", name),
				Remediation: "rename to camelCase",
			})
		}
		if rules.MaxFunctionLength > 0 {
			if length := braceFunctionLength(lines, i); length > rules.MaxFunctionLength {
				out = append(out, overLength(file, lineNo, name, length, rules.MaxFunctionLength))
			}
		}
	}
	if rules.RequireErrorHandling {
		out = append(out, jsErrorHandling(file, lines)...)
	}
	return out
}

func (e *Engine) evaluateGo(file string, lines []string, rules config.LanguageRules) []Violation {
	var out []Violation
	for i, line := range lines {
		m := goFunc.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[2]
		lineNo := i + 1
		exported := name != "" && name[0] >= 'A' && name[0] <= 'Z'
		if rules.EnforceDocComments && exported && !commentAbove(lines, i) {
			out = append(out, Violation{
				File: file, Line: lineNo, Rule: "doc-comments",
				Message:     fmt.Sprintf("exported function %s has no doc comment", name),
				Remediation: "add a doc comment starting with the function name",
			})
		}
		if rules.NamingConvention == "mixedCaps" && strings.Contains(name, "_") {
			out = append(out, Violation{
				File: file, Line: lineNo, Rule: "naming",
				Message:     fmt.Sprintf("function %s uses underscores", name),
				Remediation: "use MixedCaps or mixedCaps",
			})
		}
		if rules.MaxFunctionLength > 0 {
			if length := braceFunctionLength(lines, i); length > rules.MaxFunctionLength {
				out = append(out, overLength(file, lineNo, name, length, rules.MaxFunctionLength))
			}
		}
	}
	return out
}

func pythonHasDocstring(lines []string, defLine int, indent string) bool {
	// The docstring is the first statement after the signature, which may
	// span multiple lines before the closing colon is reached.
	for i := defLine + 1; i < len(lines) && i <= defLine+3; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''") {
			return true
		}
		if len(leadingWhitespace(lines[i])) > len(indent) {
			return false
		}
	}
	return false
}

func pythonAnnotated(name, params, line string) bool {
	if strings.HasPrefix(name, "__") {
		return true
	}
	stripped := strings.TrimSpace(params)
	if stripped == "" || stripped == "self" || stripped == "cls" {
		return true
	}
	return strings.Contains(params, ":") || strings.Contains(line, "->")
}

func pythonFunctionLength(lines []string, defLine int, indent string) int {
	length := 1
	for i := defLine + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if len(leadingWhitespace(lines[i])) <= len(indent) {
			break
		}
		length = i - defLine + 1
	}
	return length
}

// braceFunctionLength counts lines until the brace opened on the signature
// line closes again.
func braceFunctionLength(lines []string, funcLine int) int {
	depth := 0
	opened := false
	for i := funcLine; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if strings.Contains(lines[i], "{") {
			opened = true
		}
		if opened && depth <= 0 {
			return i - funcLine + 1
		}
	}
	return len(lines) - funcLine
}

func jsErrorHandling(file string, lines []string) []Violation {
	content := strings.Join(lines, "\n")
	risky := strings.Contains(content, "await ") || strings.Contains(content, "fetch(")
	handled := strings.Contains(content, "try") || strings.Contains(content, ".catch(")
	if !risky || handled {
		return nil
	}
	return []Violation{{
		File: file, Line: 1, Rule: "error-handling",
		Message:     "asynchronous calls without try/catch or .catch",
		Remediation: "wrap awaited calls in try/catch or attach .catch handlers",
	}}
}

func hardcodedValues(file string, lines []string) []Violation {
	var out []Violation
	for i, line := range lines {
		if m := hardcodedRe.FindString(line); m != "" {
			out = append(out, Violation{
				File: file, Line: i + 1, Rule: "hardcoded-values",
				Message:     "credential-like value assigned inline",
				Remediation: "move secrets to environment variables or a config file",
			})
			continue
		}
		if hardcodedURL.MatchString(line) && !strings.Contains(line, "localhost") && !strings.Contains(line, "example") {
			out = append(out, Violation{
				File: file, Line: i + 1, Rule: "hardcoded-values",
				Message:     "hardcoded URL",
				Remediation: "move the URL into configuration",
			})
		}
	}
	return out
}

func overLength(file string, line int, name string, length, limit int) Violation {
	return Violation{
		File: file, Line: line, Rule: "function-length",
		Message:     fmt.Sprintf("function %s is %d lines long, over the limit of %d", name, length, limit),
		Remediation: "split the function into smaller pieces",
	}
}

func commentAbove(lines []string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" {
			if j == i-1 {
				return false
			}
			continue
		}
		return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") ||
			strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "#")
	}
	return false
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func sortViolations(v []Violation) {
	sort.SliceStable(v, func(i, j int) bool {
		if v[i].File != v[j].File {
			return v[i].File < v[j].File
		}
		if v[i].Line != v[j].Line {
			return v[i].Line < v[j].Line
		}
		return v[i].Rule < v[j].Rule
	})
}
