package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/ragd/internal/guardrails"
	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/session"
)

var tracer = otel.Tracer("ragd.agent")

// Canned answers for runs that never reach (or lose) a real synthesis.
const (
	policyMessage = "I can't help with that request."

	fallbackMessage = "I ran into an internal problem while answering. Please try rephrasing your question."
)

// DefaultMaxSteps bounds the reasoning loop when the config does not.
const DefaultMaxSteps = 5

// Config holds orchestrator parameters.
type Config struct {
	// MaxSteps bounds provider turns per run. <= 0 uses DefaultMaxSteps.
	// The step budget is the only bound on total work; callers needing a
	// wall-clock limit wrap Run with a context deadline.
	MaxSteps int

	// Temperature is passed through to every completion call.
	Temperature float64
}

// Orchestrator runs the agentic state machine over the tool set.
type Orchestrator struct {
	provider llm.ChatProvider
	tools    *Tools
	sessions *session.Store
	input    guardrails.Validator
	output   guardrails.Validator
	cfg      Config
	logger   *logging.Logger
}

// NewOrchestrator wires the state machine. input and output validators may
// be nil, disabling the respective gate.
func NewOrchestrator(provider llm.ChatProvider, tools *Tools, sessions *session.Store, input, output guardrails.Validator, cfg Config, logger *logging.Logger) (*Orchestrator, error) {
	if provider == nil {
		return nil, errors.New("agent: chat provider is required")
	}
	if tools == nil {
		return nil, errors.New("agent: tool set is required")
	}
	if sessions == nil {
		sessions = session.NewStore()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		provider: provider,
		tools:    tools,
		sessions: sessions,
		input:    input,
		output:   output,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// run carries the mutable state of one Run call.
type run struct {
	sess       *session.Session
	language   string
	steps      []Step
	reasonings []string
	onStep     StepCallback
	started    time.Time
}

// record appends a step, stamping index and timestamp, and fires the
// callback. Durations are filled later.
func (r *run) record(step Step) {
	step.Index = len(r.steps)
	step.Timestamp = time.Now()
	r.steps = append(r.steps, step)
	if r.onStep != nil {
		r.onStep(step)
	}
}

// Run executes one agentic query through the full state machine and
// assembles the result. Guardrail-blocked input is not an error: the
// result carries the policy message. A blocked output returns the
// assembled result together with ErrOutputBlocked.
func (o *Orchestrator) Run(ctx context.Context, query string, opts RunOptions) (*RunResult, error) {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()

	r := &run{
		language: opts.Language,
		onStep:   opts.OnStep,
		started:  time.Now(),
	}
	if r.language == "" {
		r.language = retrieval.DetectLanguage(query)
	}
	span.SetAttributes(attribute.String("agent.language", r.language))

	r.sess = o.sessions.GetOrCreate(opts.SessionID)
	ctx = logging.WithSessionID(ctx, r.sess.ID)

	result := &RunResult{Language: r.language}

	// ValidatingInput
	if o.input != nil {
		verdict, err := o.input.Validate(ctx, query, nil)
		if err != nil {
			return nil, fmt.Errorf("input validation: %w", err)
		}
		result.Guardrails.Input = verdict
		if verdict.Blocked() {
			o.logger.Warn(ctx, "input blocked by guardrail",
				zap.String("severity", string(verdict.Severity)))
			result.Answer = policyMessage
			if verdict.SuggestedResponse != "" {
				result.Answer = verdict.SuggestedResponse
			}
			return o.assemble(result, r, StateDone), nil
		}

		if opts.Reaction != "" {
			rv, err := o.input.Validate(ctx, opts.Reaction, nil)
			if err != nil {
				o.logger.Warn(ctx, "reaction validation failed", zap.Error(err))
			} else {
				result.Guardrails.NegativeReaction = rv
			}
		}
	}

	// ReasoningLoop
	answer, err := o.reasoningLoop(ctx, query, opts, r)
	if err != nil {
		if errors.Is(err, llm.ErrToolNotFound) {
			o.logger.Error(ctx, "model requested unknown tool", zap.Error(err))
			result.Answer = fallbackMessage
			return o.assemble(result, r, StateFailed), nil
		}
		return nil, err
	}
	result.Answer = answer

	// ValidatingOutput
	if o.output != nil {
		contexts := make([]string, 0, r.sess.Len())
		for _, c := range r.sess.Chunks() {
			contexts = append(contexts, c.Content)
		}
		verdict, err := o.output.Validate(ctx, result.Answer, contexts)
		if err != nil {
			return nil, fmt.Errorf("output validation: %w", err)
		}
		result.Guardrails.Output = verdict
		if verdict.Blocked() {
			return o.assemble(result, r, StateDone), ErrOutputBlocked
		}
		if !verdict.Passed {
			o.logger.Warn(ctx, "output guardrail violations recorded",
				zap.Int("violations", len(verdict.Violations)),
				zap.String("severity", string(verdict.Severity)))
		}
	}

	// Resynthesizing: one retry when the answer language disagrees with
	// the expected one; a failed retry keeps the original answer.
	if detected := retrieval.DetectLanguage(result.Answer); detected != r.language {
		o.logger.Info(ctx, "answer language mismatch, resynthesizing",
			zap.String("detected", detected),
			zap.String("expected", r.language))
		redone, usage, rerr := o.tools.synthesize(ctx, query, r.sess, r.language)
		if rerr != nil {
			o.logger.Warn(ctx, "resynthesis failed, keeping original answer", zap.Error(rerr))
		} else {
			result.Answer = redone
			r.record(Step{Type: StepSynthesis, ToolOutput: redone, TokenUsage: usage})
		}
	}

	return o.assemble(result, r, StateDone), nil
}

// reasoningLoop drives provider turns until the model answers without tool
// calls or the step budget runs out. Exhaustion triggers a direct
// synthesis over whatever the session accumulated.
func (o *Orchestrator) reasoningLoop(ctx context.Context, query string, opts RunOptions, r *run) (string, error) {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = o.cfg.MaxSteps
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(r.language)},
		{Role: llm.RoleUser, Content: query},
	}
	specs := o.tools.Specs()

	for turn := 0; turn < maxSteps; turn++ {
		resp, err := o.provider.Complete(ctx, llm.Request{
			Messages:    messages,
			Tools:       specs,
			Temperature: o.cfg.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("completion turn %d: %w", turn, err)
		}

		if len(resp.ToolCalls) == 0 {
			r.record(Step{Type: StepSynthesis, ToolOutput: resp.Content, TokenUsage: resp.Usage})
			return resp.Content, nil
		}

		usage := resp.Usage
		if resp.Content != "" {
			r.reasonings = append(r.reasonings, resp.Content)
			r.record(Step{Type: StepReasoning, Reasoning: resp.Content, TokenUsage: usage})
			usage = llm.TokenUsage{}
		}
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		executions, err := o.executeCalls(ctx, r.sess, resp.ToolCalls)
		if err != nil {
			return "", err
		}
		for i, call := range resp.ToolCalls {
			r.record(Step{
				Type:       executions[i].Type,
				ToolName:   call.Name,
				ToolInput:  call.Arguments,
				ToolOutput: executions[i].Output,
				TokenUsage: usage,
			})
			usage = llm.TokenUsage{}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    executions[i].Output,
			})
		}
	}

	o.logger.Info(ctx, "step budget exhausted, synthesizing from session",
		zap.Int("max_steps", maxSteps),
		zap.Int("chunks", r.sess.Len()))
	answer, usage, err := o.tools.synthesize(ctx, query, r.sess, r.language)
	if err != nil {
		return "", err
	}
	r.record(Step{Type: StepSynthesis, ToolOutput: answer, TokenUsage: usage})
	return answer, nil
}

// executeCalls runs all tool calls of one turn concurrently. The first
// error cancels the rest; an unknown tool name surfaces as
// llm.ErrToolNotFound for the caller to classify.
func (o *Orchestrator) executeCalls(ctx context.Context, sess *session.Session, calls []llm.ToolCall) ([]*Execution, error) {
	executions := make([]*Execution, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			ex, err := o.tools.Execute(gctx, sess, call)
			if err != nil {
				return err
			}
			executions[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return executions, nil
}

// assemble finalizes durations and copies session state into the result.
func (o *Orchestrator) assemble(result *RunResult, r *run, state State) *RunResult {
	now := time.Now()
	for i := range r.steps {
		if i+1 < len(r.steps) {
			r.steps[i].DurationMs = r.steps[i+1].Timestamp.Sub(r.steps[i].Timestamp).Milliseconds()
		} else {
			r.steps[i].DurationMs = now.Sub(r.steps[i].Timestamp).Milliseconds()
		}
	}

	result.State = state
	result.Steps = r.steps
	result.RetrievedChunks = r.sess.Chunks()
	result.Citations = r.sess.Citations()
	result.Reasoning = r.reasonings
	result.TotalLatencyMs = time.Since(r.started).Milliseconds()
	if result.TotalLatencyMs <= 0 {
		result.TotalLatencyMs = 1
	}
	return result
}
