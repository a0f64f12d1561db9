package scanner

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxDecodeDepth bounds how many times encoded payloads are unwrapped before
// the scanner stops and flags possible obfuscation instead.
const maxDecodeDepth = 2

// ObfuscationPatternID marks findings raised when encoded content is still
// present after the decode budget is exhausted.
const ObfuscationPatternID = "possible-obfuscation"

// Finding is one matched pattern. DecodeDepth is 0 for matches in the raw
// command text and counts decode passes for matches inside decoded payloads.
type Finding struct {
	PatternID   string
	Category    string
	Severity    Severity
	MatchedText string
	DecodeDepth int
}

// Scanner matches command text against an ordered ruleset, unwrapping
// base64 and hex payloads embedded in the text.
type Scanner struct {
	rules []Rule
}

func New() *Scanner {
	return NewWithRules(defaultRules)
}

func NewWithRules(rules []Rule) *Scanner {
	return &Scanner{rules: rules}
}

var (
	// Padded runs are a strong signal at any length; unpadded runs need to be
	// long enough not to match ordinary words.
	base64Candidate = regexp.MustCompile(`[A-Za-z0-9+/]{4,}={1,2}|[A-Za-z0-9+/]{12,}`)
	hexCandidate    = regexp.MustCompile(`(?:[0-9a-fA-F]{2}){6,}`)
)

// Scan evaluates the text against the ruleset. The first block finding,
// whether in the raw text or a decoded payload, short-circuits the scan and
// is returned alone. Otherwise all warn and info findings are returned in
// rule order. Results are deterministic for identical input.
func (s *Scanner) Scan(text string) []Finding {
	findings, blocked := s.scan(text, 0)
	if blocked {
		return findings
	}
	return dedupe(findings)
}

func (s *Scanner) scan(text string, depth int) ([]Finding, bool) {
	var findings []Finding
	for _, rule := range s.rules {
		match := rule.re.FindString(text)
		if match == "" {
			continue
		}
		f := Finding{
			PatternID:   rule.ID,
			Category:    rule.Category,
			Severity:    rule.Severity,
			MatchedText: match,
			DecodeDepth: depth,
		}
		if rule.Severity == SeverityBlock {
			return []Finding{f}, true
		}
		findings = append(findings, f)
	}

	payloads := decodePayloads(text)
	if depth >= maxDecodeDepth {
		if len(payloads) > 0 {
			findings = append(findings, Finding{
				PatternID:   ObfuscationPatternID,
				Category:    "obfuscation",
				Severity:    SeverityWarn,
				MatchedText: payloads[0].encoded,
				DecodeDepth: depth,
			})
		}
		return findings, false
	}
	for _, p := range payloads {
		sub, blocked := s.scan(p.decoded, depth+1)
		if blocked {
			return sub, true
		}
		findings = append(findings, sub...)
	}
	return findings, false
}

type payload struct {
	encoded string
	decoded string
}

// decodePayloads extracts base64 and hex runs from the text and returns the
// ones that decode to printable content, in order of appearance.
func decodePayloads(text string) []payload {
	var out []payload
	for _, m := range base64Candidate.FindAllString(text, -1) {
		if d, ok := decodeBase64(m); ok {
			out = append(out, payload{encoded: m, decoded: d})
		}
	}
	for _, m := range hexCandidate.FindAllString(text, -1) {
		b, err := hex.DecodeString(m)
		if err != nil {
			continue
		}
		if d, ok := printable(b); ok {
			out = append(out, payload{encoded: m, decoded: d})
		}
	}
	return out
}

func decodeBase64(s string) (string, bool) {
	var b []byte
	var err error
	if strings.HasSuffix(s, "=") {
		b, err = base64.StdEncoding.DecodeString(s)
	} else {
		b, err = base64.RawStdEncoding.DecodeString(s)
	}
	if err != nil {
		return "", false
	}
	return printable(b)
}

// printable accepts decoded bytes only when they form valid UTF-8 text
// without control characters, which filters out word-shaped runs that happen
// to be valid encodings.
func printable(b []byte) (string, bool) {
	if len(b) == 0 || !utf8.Valid(b) {
		return "", false
	}
	s := string(b)
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			return "", false
		}
	}
	return s, true
}

func dedupe(findings []Finding) []Finding {
	if len(findings) < 2 {
		return findings
	}
	type key struct {
		id    string
		match string
		depth int
	}
	seen := make(map[key]bool, len(findings))
	out := findings[:0]
	for _, f := range findings {
		k := key{id: f.PatternID, match: f.MatchedText, depth: f.DecodeDepth}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}
