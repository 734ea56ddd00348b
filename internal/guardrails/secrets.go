package guardrails

import (
	"context"
	"fmt"
	"regexp"
)

// secretRule is one credential detection pattern. Violation messages carry
// the rule description only, never the matched text.
type secretRule struct {
	id          string
	description string
	pattern     *regexp.Regexp
	severity    Severity
}

// secretRules covers the credential shapes most likely to leak through a
// generated answer: self-identifying token prefixes plus assignment-style
// generic keys.
var secretRules = []secretRule{
	{
		id:          "aws-access-key-id",
		description: "AWS access key ID",
		pattern:     regexp.MustCompile(`(?i)(A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|ASIA)[A-Z0-9]{16}`),
		severity:    SeverityCritical,
	},
	{
		id:          "private-key",
		description: "private key block",
		pattern:     regexp.MustCompile(`-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`),
		severity:    SeverityCritical,
	},
	{
		id:          "github-token",
		description: "GitHub token",
		pattern:     regexp.MustCompile(`(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}`),
		severity:    SeverityCritical,
	},
	{
		id:          "gitlab-token",
		description: "GitLab personal access token",
		pattern:     regexp.MustCompile(`glpat-[A-Za-z0-9\-]{20,}`),
		severity:    SeverityCritical,
	},
	{
		id:          "slack-token",
		description: "Slack token",
		pattern:     regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`),
		severity:    SeverityHigh,
	},
	{
		id:          "generic-api-key",
		description: "assigned API key",
		pattern:     regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`),
		severity:    SeverityHigh,
	},
}

// SecretValidator blocks text containing credential material. It is meant
// as an output gate: retrieved documents may legitimately discuss keys,
// but a generated answer must never reproduce one.
type SecretValidator struct {
	rules []secretRule
}

// NewSecretValidator creates a validator with the built-in rule set.
func NewSecretValidator() *SecretValidator {
	return &SecretValidator{rules: secretRules}
}

func (v *SecretValidator) Name() string { return "secrets" }

// Validate scans the text against every rule. Any match blocks.
func (v *SecretValidator) Validate(_ context.Context, text string, _ []string) (*Result, error) {
	result := Allowed()
	for _, rule := range v.rules {
		n := len(rule.pattern.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		result.Passed = false
		result.Action = ActionBlock
		result.Severity = result.Severity.Max(rule.severity)
		result.Violations = append(result.Violations, Violation{
			Code:     rule.id,
			Message:  fmt.Sprintf("%s detected (%d occurrence(s))", rule.description, n),
			Severity: rule.severity,
		})
	}
	if result.Blocked() {
		result.SuggestedResponse = "I can't share that: the answer would expose credential material."
		result.RequiresEscalation = result.Severity == SeverityCritical
	}
	return result, nil
}
