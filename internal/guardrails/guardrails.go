// Package guardrails defines the validation gates the agent runs before
// and after answering. Validators are pluggable; the orchestrator only
// cares about the verdict shape.
package guardrails

import "context"

// Severity grades how bad a violation is.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparison.
var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Max returns the more severe of two severities.
func (s Severity) Max(other Severity) Severity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

// Action is the verdict a validation produces.
type Action string

const (
	// ActionAllow lets the content through untouched.
	ActionAllow Action = "allow"
	// ActionWarn lets the content through but flags it.
	ActionWarn Action = "warn"
	// ActionBlock stops the content.
	ActionBlock Action = "block"
)

// Violation is one rule the content broke.
type Violation struct {
	// Code is a stable machine-readable identifier, e.g. "PROMPT_INJECTION".
	Code string `json:"code"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Severity grades the violation.
	Severity Severity `json:"severity"`
}

// Result is the outcome of running a validation gate.
type Result struct {
	// Passed is true when no violation forced a block.
	Passed bool `json:"passed"`

	// Action is the aggregate verdict.
	Action Action `json:"action"`

	// Violations lists every rule that fired.
	Violations []Violation `json:"violations,omitempty"`

	// Severity is the highest violation severity.
	Severity Severity `json:"severity"`

	// SuggestedResponse is the canned reply to use when blocked.
	SuggestedResponse string `json:"suggested_response,omitempty"`

	// RequiresEscalation marks verdicts a human should review.
	RequiresEscalation bool `json:"requires_escalation,omitempty"`
}

// Allowed returns a passing result.
func Allowed() *Result {
	return &Result{Passed: true, Action: ActionAllow, Severity: SeverityNone}
}

// Blocked reports whether the content must not proceed.
func (r *Result) Blocked() bool {
	return r != nil && r.Action == ActionBlock
}

// Merge folds another result into this one, keeping the strictest action
// and highest severity.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	if !other.Passed {
		r.Passed = false
	}
	if other.Action == ActionBlock || (other.Action == ActionWarn && r.Action == ActionAllow) {
		r.Action = other.Action
	}
	r.Severity = r.Severity.Max(other.Severity)
	r.Violations = append(r.Violations, other.Violations...)
	if other.RequiresEscalation {
		r.RequiresEscalation = true
	}
	if r.SuggestedResponse == "" {
		r.SuggestedResponse = other.SuggestedResponse
	}
}

// Validator checks one piece of text. contextTexts carries supporting
// material (for output validation, the retrieved chunk contents) so
// validators can check groundedness, not just the text in isolation.
type Validator interface {
	Validate(ctx context.Context, text string, contextTexts []string) (*Result, error)
	Name() string
}

// Chain runs validators in order and merges their results. A block from
// any validator blocks the chain; validator errors propagate immediately.
type Chain struct {
	validators []Validator
}

// NewChain creates a chain of validators.
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// Name implements Validator.
func (c *Chain) Name() string { return "chain" }

// Validate implements Validator.
func (c *Chain) Validate(ctx context.Context, text string, contextTexts []string) (*Result, error) {
	merged := Allowed()
	for _, v := range c.validators {
		result, err := v.Validate(ctx, text, contextTexts)
		if err != nil {
			return nil, err
		}
		merged.Merge(result)
	}
	return merged, nil
}
