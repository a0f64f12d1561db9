package scanner

import "regexp"

// RulesetVersion identifies the built-in ruleset. Identical input and ruleset
// version always produce identical findings.
const RulesetVersion = "2026-08"

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

// Rule matches one dangerous pattern in command text.
type Rule struct {
	ID       string
	Category string
	Severity Severity
	re       *regexp.Regexp
}

// defaultRules is evaluated in order; the first block match wins. Categories
// follow the security pattern families of the upstream ruleset: destructive
// filesystem operations, device-level writes, remote code execution,
// privilege and history tampering, credential exposure.
var defaultRules = []Rule{
	{
		ID:       "destructive-rm-root",
		Category: "destructive",
		Severity: SeverityBlock,
		re:       regexp.MustCompile(`\brm\s+(-[a-zA-Z]+\s+)*-([a-zA-Z]*[rR][a-zA-Z]*f|[a-zA-Z]*f[a-zA-Z]*[rR])[a-zA-Z]*\s+(/|/\*|~|\$HOME)(\s|$)`),
	},
	{
		ID:       "destructive-rm-recursive-force",
		Category: "destructive",
		Severity: SeverityWarn,
		re:       regexp.MustCompile(`\brm\s+(-[a-zA-Z]+\s+)*-([a-zA-Z]*[rR][a-zA-Z]*f|[a-zA-Z]*f[a-zA-Z]*[rR])`),
	},
	{
		ID:       "destructive-mkfs",
		Category: "destructive",
		Severity: SeverityBlock,
		re:       regexp.MustCompile(`\bmkfs(\.[a-z0-9]+)?\b`),
	},
	{
		ID:       "destructive-dd-device",
		Category: "destructive",
		Severity: SeverityBlock,
		re:       regexp.MustCompile(`\bdd\b[^|;&]*\bof=/dev/`),
	},
	{
		ID:       "destructive-fork-bomb",
		Category: "destructive",
		Severity: SeverityBlock,
		re:       regexp.MustCompile(`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;\s*:`),
	},
	{
		ID:       "remote-exec-pipe-shell",
		Category: "remote-exec",
		Severity: SeverityBlock,
		re:       regexp.MustCompile(`\b(curl|wget)\b[^|;]*\|\s*(sudo\s+)?(ba)?sh\b`),
	},
	{
		ID:       "privilege-chmod-world-writable-root",
		Category: "privilege",
		Severity: SeverityBlock,
		re:       regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]+\s+)*777\s+/(\s|$)`),
	},
	{
		ID:       "privilege-shutdown",
		Category: "privilege",
		Severity: SeverityBlock,
		re:       regexp.MustCompile(`\b(shutdown|reboot|halt|poweroff)\b`),
	},
	{
		ID:       "tamper-history-wipe",
		Category: "tamper",
		Severity: SeverityWarn,
		re:       regexp.MustCompile(`\bhistory\s+-c\b|\bunset\s+HISTFILE\b`),
	},
	{
		ID:       "tamper-git-force-push",
		Category: "tamper",
		Severity: SeverityWarn,
		re:       regexp.MustCompile(`\bgit\s+push\b[^|;&]*(--force\b|-f\b)`),
	},
	{
		ID:       "credential-file-read",
		Category: "credential",
		Severity: SeverityWarn,
		re:       regexp.MustCompile(`(\.aws/credentials|\.ssh/id_[a-z0-9]+|\.netrc|/etc/shadow)`),
	},
	{
		ID:       "credential-hardcoded-secret",
		Category: "credential",
		Severity: SeverityWarn,
		re:       regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|password)\s*[=:]\s*["'][\w-]{8,}["']`),
	},
	{
		ID:       "exec-eval-shell",
		Category: "remote-exec",
		Severity: SeverityWarn,
		re:       regexp.MustCompile(`\beval\s+["'$]`),
	},
	{
		ID:       "exec-interpreter-inline",
		Category: "remote-exec",
		Severity: SeverityInfo,
		re:       regexp.MustCompile(`\b(python3?|node|perl|ruby)\s+-[ec]\b`),
	},
	{
		ID:       "network-exfil-post",
		Category: "exfiltration",
		Severity: SeverityWarn,
		re:       regexp.MustCompile(`\bcurl\b[^|;]*\s(-d|--data|--data-binary|-F)\s`),
	},
}

// Rules returns the built-in ruleset.
func Rules() []Rule {
	return defaultRules
}
