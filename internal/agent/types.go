package agent

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/citations"
	"github.com/fyrsmithlabs/ragd/internal/guardrails"
	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

// ErrOutputBlocked indicates the output guardrail blocked the produced
// answer. The assembled result is still returned alongside it.
var ErrOutputBlocked = errors.New("output blocked by guardrail")

// State names a phase of the orchestrator state machine.
type State string

const (
	StateValidatingInput  State = "validating_input"
	StateReasoningLoop    State = "reasoning_loop"
	StateValidatingOutput State = "validating_output"
	StateResynthesizing   State = "resynthesizing"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// StepType classifies a recorded agent step.
type StepType string

const (
	StepReasoning StepType = "reasoning"
	StepToolCall  StepType = "tool_call"
	StepRetrieval StepType = "retrieval"
	StepSynthesis StepType = "synthesis"

	// StepReranking marks a search whose results a reranker rescored.
	StepReranking StepType = "reranking"
)

// Step is one recorded unit of work within a run. Index increases strictly
// within the run. DurationMs is filled by a post-process pass: the gap to
// the next step's timestamp, or now minus the timestamp for the last step.
type Step struct {
	Index      int             `json:"step_index"`
	Type       StepType        `json:"step_type"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	ToolOutput string          `json:"tool_output,omitempty"`
	Reasoning  string          `json:"reasoning,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Timestamp  time.Time       `json:"timestamp"`
	TokenUsage llm.TokenUsage  `json:"token_usage,omitempty"`
}

// StepCallback receives each step as it is recorded. DurationMs is not yet
// set at callback time.
type StepCallback func(step Step)

// GuardrailVerdicts collects the validation results attached to a run.
type GuardrailVerdicts struct {
	Input            *guardrails.Result `json:"input,omitempty"`
	Output           *guardrails.Result `json:"output,omitempty"`
	NegativeReaction *guardrails.Result `json:"negative_reaction,omitempty"`
}

// RunResult is the assembled outcome of one orchestrator run.
type RunResult struct {
	Answer          string                     `json:"answer"`
	State           State                      `json:"state"`
	Steps           []Step                     `json:"steps"`
	RetrievedChunks []retrieval.RetrievedChunk `json:"retrieved_chunks"`
	Citations       []citations.Citation       `json:"citations"`
	Guardrails      GuardrailVerdicts          `json:"guardrail_results"`
	Language        string                     `json:"language"`
	TotalLatencyMs  int64                      `json:"total_latency_ms"`
	Reasoning       []string                   `json:"reasoning,omitempty"`
}

// RunOptions tune a single run.
type RunOptions struct {
	// SessionID scopes chunk and citation accumulation. Empty creates a
	// fresh session.
	SessionID string

	// MaxSteps overrides the configured reasoning budget when positive.
	MaxSteps int

	// Language forces the expected answer language ("en" or "id"). Empty
	// detects it from the query.
	Language string

	// Reaction carries user feedback on a prior answer; when set it is
	// run through the input guardrail and attached as NegativeReaction.
	Reaction string

	// OnStep is invoked for each recorded step.
	OnStep StepCallback
}
