package interceptor

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// PredictPaths extracts the path-like tokens a shell command is likely to
// touch. The command is parsed with the shfmt parser and its word literals
// and redirect targets are collected; on parse error a whitespace split is
// used instead, so an unparseable command still gets a best-effort
// prediction.
func PredictPaths(command string) []string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return filterPathTokens(strings.Fields(command))
	}
	var tokens []string
	syntax.Walk(file, func(node syntax.Node) bool {
		switch x := node.(type) {
		case *syntax.CallExpr:
			// The first word is the program name, the rest are arguments.
			for i, w := range x.Args {
				if i == 0 {
					continue
				}
				if lit := wordLiteral(w); lit != "" {
					tokens = append(tokens, lit)
				}
			}
		case *syntax.Redirect:
			if x.Word != nil {
				if lit := wordLiteral(x.Word); lit != "" {
					tokens = append(tokens, lit)
				}
			}
		}
		return true
	})
	return filterPathTokens(tokens)
}

// wordLiteral flattens a word made of plain literals and quoted strings.
// Words containing expansions or substitutions yield "" since their value is
// unknowable without executing.
func wordLiteral(w *syntax.Word) string {
	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(p.Value)
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return ""
				}
				b.WriteString(lit.Value)
			}
		default:
			return ""
		}
	}
	return b.String()
}

func filterPathTokens(tokens []string) []string {
	var out []string
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if !looksLikePath(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// looksLikePath keeps tokens with a path separator or file extension and
// drops flags, URLs and bare words.
func looksLikePath(tok string) bool {
	if tok == "" || strings.HasPrefix(tok, "-") {
		return false
	}
	if strings.Contains(tok, "://") {
		return false
	}
	if tok == "." || tok == ".." || tok == "/" {
		return false
	}
	if strings.ContainsAny(tok, "*?[") {
		// Globs expand to an unknown set.
		return false
	}
	if strings.HasSuffix(tok, "/") {
		// Directories and sed-style expressions, neither is a file to back up.
		return false
	}
	if strings.Contains(tok, "/") {
		return true
	}
	dot := strings.LastIndexByte(tok, '.')
	if dot <= 0 || dot == len(tok)-1 {
		return false
	}
	ext := tok[dot+1:]
	if c := ext[0]; (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
		// "1.5" is a number, not a file.
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
