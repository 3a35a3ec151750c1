// Package injection flags user messages that try to override the assistant's
// instructions or claim a role the caller does not hold. Hits are logged and
// the message still goes through; tool gating and the store decide what a
// caller can actually do.
package injection

import (
	"log/slog"
	"regexp"

	"inventrack/internal/domain"
)

type rule struct {
	name string
	re   *regexp.Regexp
}

func mustRule(name, expr string) rule {
	return rule{name: name, re: regexp.MustCompile(`(?i)` + expr)}
}

var rules = []rule{
	mustRule("override", `\b(ignore|disregard|forget)\s+(all\s+)?(previous|prior|your)\s+(instructions|rules|prompts?)`),
	mustRule("prompt-leak", `\b(system|hidden)\s+prompt\b`),
	mustRule("jailbreak", `\bdeveloper\s+mode\b`),
	mustRule("role-claim", `\b(you\s+are\s+now|pretend\s+(you\s+are|to\s+be)|act\s+as)\s+(an?\s+)?(admin|administrator|manager)\b`),
	mustRule("role-claim", `\bmy\s+role\s+is\s+(admin|manager)\b`),
}

// ScanResult lists the rules a text tripped.
type ScanResult struct {
	Detected bool
	Rules    []string
}

// Scan matches text against the rule set. Each rule name appears once.
func Scan(text string) ScanResult {
	var hit []string
	for _, r := range rules {
		if !r.re.MatchString(text) {
			continue
		}
		if len(hit) == 0 || hit[len(hit)-1] != r.name {
			hit = append(hit, r.name)
		}
	}
	return ScanResult{Detected: len(hit) > 0, Rules: hit}
}

// Report scans the text blocks of msg and logs a warning on a hit.
func Report(logger *slog.Logger, userID string, msg domain.Message) ScanResult {
	res := Scan(msg.Text())
	if !res.Detected {
		return res
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("possible prompt injection", "user_id", userID, "message_id", msg.ID, "rules", res.Rules)
	return res
}
