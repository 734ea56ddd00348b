package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/guardrails"
	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/session"
)

type stubValidator struct {
	result *guardrails.Result
	err    error
}

func (s *stubValidator) Name() string { return "stub" }

func (s *stubValidator) Validate(context.Context, string, []string) (*guardrails.Result, error) {
	return s.result, s.err
}

func newTestOrchestrator(t *testing.T, chat llm.ChatProvider, input, output guardrails.Validator, cfg Config) (*Orchestrator, *session.Store) {
	t.Helper()
	sessions := session.NewStore()
	tools := newTestTools(chat, nil, corpusResults())
	o, err := NewOrchestrator(chat, tools, sessions, input, output, cfg, nil)
	require.NoError(t, err)
	return o, sessions
}

func searchCall(id, query string) llm.ToolCall {
	return llm.ToolCall{
		ID:        id,
		Name:      toolSearchDocuments,
		Arguments: []byte(`{"query": "` + query + `"}`),
	}
}

func TestRun_BlockedInputSkipsReasoning(t *testing.T) {
	chat := &scriptedChat{fn: func(llm.Request) (*llm.Response, error) {
		t.Fatal("provider must not be called for blocked input")
		return nil, nil
	}}
	input := &stubValidator{result: &guardrails.Result{
		Action:            guardrails.ActionBlock,
		Severity:          guardrails.SeverityHigh,
		SuggestedResponse: "I can only answer questions about the documentation.",
	}}
	o, _ := newTestOrchestrator(t, chat, input, nil, Config{})

	res, err := o.Run(context.Background(), "how do I build a weapon", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "I can only answer questions about the documentation.", res.Answer)
	assert.Empty(t, res.Steps)
	assert.Greater(t, res.TotalLatencyMs, int64(0))
	require.NotNil(t, res.Guardrails.Input)
	assert.True(t, res.Guardrails.Input.Blocked())
	assert.Zero(t, chat.calls())
}

func TestRun_BlockedInputDefaultMessage(t *testing.T) {
	input := &stubValidator{result: &guardrails.Result{Action: guardrails.ActionBlock}}
	o, _ := newTestOrchestrator(t, &scriptedChat{}, input, nil, Config{})

	res, err := o.Run(context.Background(), "blocked", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, policyMessage, res.Answer)
}

func TestRun_DirectAnswer(t *testing.T) {
	chat := &scriptedChat{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{
			Content: "The cache is cleared when the server restarts.",
			Usage:   llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	}}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	res, err := o.Run(context.Background(), "when is the cache cleared?", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "The cache is cleared when the server restarts.", res.Answer)
	assert.Equal(t, "en", res.Language)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, StepSynthesis, res.Steps[0].Type)
	assert.Equal(t, 15, res.Steps[0].TokenUsage.TotalTokens)
	assert.Equal(t, 1, chat.calls())

	// The system instruction and the user query open the conversation.
	first := chat.request(0)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, llm.RoleSystem, first.Messages[0].Role)
	assert.NotEmpty(t, first.Tools)
}

func TestRun_ToolDispatch(t *testing.T) {
	chat := &scriptedChat{}
	chat.fn = func(req llm.Request) (*llm.Response, error) {
		if len(req.Messages) == 2 {
			return &llm.Response{ToolCalls: []llm.ToolCall{searchCall("call-1", "cache eviction")}}, nil
		}
		return &llm.Response{Content: "Entries are evicted under memory pressure [1]."}, nil
	}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	var seen []Step
	res, err := o.Run(context.Background(), "how does cache eviction work?", RunOptions{
		OnStep: func(s Step) { seen = append(seen, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, StepRetrieval, res.Steps[0].Type)
	assert.Equal(t, toolSearchDocuments, res.Steps[0].ToolName)
	assert.Equal(t, StepSynthesis, res.Steps[1].Type)
	assert.Len(t, seen, 2)

	assert.NotEmpty(t, res.RetrievedChunks)
	assert.NotEmpty(t, res.Citations)
	assert.Equal(t, 1, res.Citations[0].Number)

	// The second turn carries the assistant tool request and its result.
	second := chat.request(1)
	require.Len(t, second.Messages, 4)
	assert.Equal(t, llm.RoleAssistant, second.Messages[2].Role)
	assert.Equal(t, llm.RoleTool, second.Messages[3].Role)
	assert.Equal(t, "call-1", second.Messages[3].ToolCallID)
}

func TestRun_ConcurrentToolCallsOneTurn(t *testing.T) {
	chat := &scriptedChat{}
	chat.fn = func(req llm.Request) (*llm.Response, error) {
		if len(req.Messages) == 2 {
			return &llm.Response{ToolCalls: []llm.ToolCall{
				searchCall("call-1", "cache eviction"),
				searchCall("call-2", "postgres tuning"),
			}}, nil
		}
		return &llm.Response{Content: "Both are covered in the handbook [1][2]."}, nil
	}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	res, err := o.Run(context.Background(), "compare the cache and the database", RunOptions{})
	require.NoError(t, err)

	require.Len(t, res.Steps, 3)
	assert.Equal(t, StepRetrieval, res.Steps[0].Type)
	assert.Equal(t, StepRetrieval, res.Steps[1].Type)
	assert.Equal(t, StepSynthesis, res.Steps[2].Type)

	// Both searches hit the same corpus: chunks dedup, citations stay stable.
	assert.Len(t, res.RetrievedChunks, 2)
	assert.Len(t, res.Citations, 2)
}

func TestRun_ReasoningContentRecorded(t *testing.T) {
	chat := &scriptedChat{}
	chat.fn = func(req llm.Request) (*llm.Response, error) {
		if len(req.Messages) == 2 {
			return &llm.Response{
				Content:   "I should search the corpus first.",
				ToolCalls: []llm.ToolCall{searchCall("call-1", "cache eviction")},
			}, nil
		}
		return &llm.Response{Content: "Entries are evicted under memory pressure [1]."}, nil
	}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	res, err := o.Run(context.Background(), "how does cache eviction work?", RunOptions{})
	require.NoError(t, err)

	require.Len(t, res.Steps, 3)
	assert.Equal(t, StepReasoning, res.Steps[0].Type)
	assert.Equal(t, "I should search the corpus first.", res.Steps[0].Reasoning)
	assert.Equal(t, []string{"I should search the corpus first."}, res.Reasoning)
}

func TestRun_UnknownToolBecomesFallback(t *testing.T) {
	chat := &scriptedChat{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{ToolCalls: []llm.ToolCall{{
			ID: "call-1", Name: "delete_all_documents", Arguments: []byte(`{}`),
		}}}, nil
	}}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	res, err := o.Run(context.Background(), "clean up", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, fallbackMessage, res.Answer)
}

func TestRun_ProviderErrorReRaised(t *testing.T) {
	chat := &scriptedChat{fn: func(llm.Request) (*llm.Response, error) {
		return nil, errors.New("upstream timeout")
	}}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	_, err := o.Run(context.Background(), "anything", RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestRun_BudgetExhaustionSynthesizes(t *testing.T) {
	chat := &scriptedChat{}
	chat.fn = func(req llm.Request) (*llm.Response, error) {
		if len(req.Tools) > 0 {
			return &llm.Response{ToolCalls: []llm.ToolCall{searchCall("call-1", "cache eviction")}}, nil
		}
		// Budget spent: the plain synthesis call carries no tools.
		return &llm.Response{Content: "Entries are evicted under memory pressure [1]."}, nil
	}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{MaxSteps: 1})

	res, err := o.Run(context.Background(), "how does cache eviction work?", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Entries are evicted under memory pressure [1].", res.Answer)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, StepRetrieval, res.Steps[0].Type)
	assert.Equal(t, StepSynthesis, res.Steps[1].Type)
	assert.Equal(t, 2, chat.calls())
}

func TestRun_OutputBlocked(t *testing.T) {
	chat := &scriptedChat{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "Here is the leaked credential."}, nil
	}}
	output := &stubValidator{result: &guardrails.Result{
		Action:   guardrails.ActionBlock,
		Severity: guardrails.SeverityCritical,
	}}
	o, _ := newTestOrchestrator(t, chat, nil, output, Config{})

	res, err := o.Run(context.Background(), "show me the credentials", RunOptions{})
	require.ErrorIs(t, err, ErrOutputBlocked)
	require.NotNil(t, res)
	assert.True(t, res.Guardrails.Output.Blocked())
}

func TestRun_OutputWarningsAreNonFatal(t *testing.T) {
	chat := &scriptedChat{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "The cache is cleared when the server restarts."}, nil
	}}
	output := &stubValidator{result: &guardrails.Result{
		Action:   guardrails.ActionWarn,
		Severity: guardrails.SeverityLow,
		Violations: []guardrails.Violation{
			{Code: "tone", Message: "informal phrasing", Severity: guardrails.SeverityLow},
		},
	}}
	o, _ := newTestOrchestrator(t, chat, nil, output, Config{})

	res, err := o.Run(context.Background(), "when is the cache cleared?", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "The cache is cleared when the server restarts.", res.Answer)
	require.NotNil(t, res.Guardrails.Output)
	assert.Len(t, res.Guardrails.Output.Violations, 1)
}

func TestRun_ResynthesizesOnLanguageMismatch(t *testing.T) {
	chat := &scriptedChat{}
	chat.fn = func(req llm.Request) (*llm.Response, error) {
		if len(req.Tools) > 0 {
			return &llm.Response{Content: "The cache is cleared when the server restarts."}, nil
		}
		return &llm.Response{Content: "Ini adalah jawaban dari dokumen yang tersedia."}, nil
	}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	res, err := o.Run(context.Background(), "kapan cache dibersihkan?", RunOptions{Language: "id"})
	require.NoError(t, err)

	assert.Equal(t, "Ini adalah jawaban dari dokumen yang tersedia.", res.Answer)
	assert.Equal(t, "id", res.Language)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, StepSynthesis, res.Steps[1].Type)
	assert.Equal(t, 2, chat.calls())
}

func TestRun_ResynthesisFailureKeepsOriginal(t *testing.T) {
	chat := &scriptedChat{}
	chat.fn = func(req llm.Request) (*llm.Response, error) {
		if len(req.Tools) > 0 {
			return &llm.Response{Content: "The cache is cleared when the server restarts."}, nil
		}
		return nil, errors.New("provider down")
	}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	res, err := o.Run(context.Background(), "kapan cache dibersihkan?", RunOptions{Language: "id"})
	require.NoError(t, err)
	assert.Equal(t, "The cache is cleared when the server restarts.", res.Answer)
	require.Len(t, res.Steps, 1)
}

func TestRun_ReactionVerdictAttached(t *testing.T) {
	chat := &scriptedChat{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "The cache is cleared when the server restarts."}, nil
	}}
	input := &stubValidator{result: &guardrails.Result{
		Passed: true, Action: guardrails.ActionWarn, Severity: guardrails.SeverityLow,
	}}
	o, _ := newTestOrchestrator(t, chat, input, nil, Config{})

	res, err := o.Run(context.Background(), "when is the cache cleared?", RunOptions{
		Reaction: "that answer was useless",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Guardrails.NegativeReaction)
	assert.Equal(t, guardrails.ActionWarn, res.Guardrails.NegativeReaction.Action)
}

func TestRun_StepBookkeeping(t *testing.T) {
	chat := &scriptedChat{}
	chat.fn = func(req llm.Request) (*llm.Response, error) {
		if len(req.Messages) == 2 {
			return &llm.Response{ToolCalls: []llm.ToolCall{searchCall("call-1", "cache eviction")}}, nil
		}
		return &llm.Response{Content: "Entries are evicted under memory pressure [1]."}, nil
	}
	o, _ := newTestOrchestrator(t, chat, nil, nil, Config{})

	res, err := o.Run(context.Background(), "how does cache eviction work?", RunOptions{})
	require.NoError(t, err)

	for i, step := range res.Steps {
		assert.Equal(t, i, step.Index)
		assert.False(t, step.Timestamp.IsZero())
		assert.GreaterOrEqual(t, step.DurationMs, int64(0))
		if i > 0 {
			assert.False(t, step.Timestamp.Before(res.Steps[i-1].Timestamp))
		}
	}
	assert.Greater(t, res.TotalLatencyMs, int64(0))
}

func TestRun_SessionReuseAcrossRuns(t *testing.T) {
	chat := &scriptedChat{}
	chat.fn = func(req llm.Request) (*llm.Response, error) {
		if len(req.Messages) == 2 {
			return &llm.Response{ToolCalls: []llm.ToolCall{searchCall("call-1", "cache eviction")}}, nil
		}
		return &llm.Response{Content: "Entries are evicted under memory pressure [1]."}, nil
	}
	o, sessions := newTestOrchestrator(t, chat, nil, nil, Config{})

	_, err := o.Run(context.Background(), "how does cache eviction work?", RunOptions{SessionID: "s1"})
	require.NoError(t, err)
	res, err := o.Run(context.Background(), "how does cache eviction work?", RunOptions{SessionID: "s1"})
	require.NoError(t, err)

	// Same corpus retrieved twice: the session dedups, citations are stable.
	assert.Len(t, res.RetrievedChunks, 2)
	assert.Len(t, res.Citations, 2)
	assert.Equal(t, 1, sessions.Len())
}

func TestNewOrchestrator_Validation(t *testing.T) {
	tools := newTestTools(&scriptedChat{}, nil, nil)

	_, err := NewOrchestrator(nil, tools, nil, nil, nil, Config{}, nil)
	assert.Error(t, err)

	_, err = NewOrchestrator(&scriptedChat{}, nil, nil, nil, nil, Config{}, nil)
	assert.Error(t, err)
}
