package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ragd.llm")

// LangchainProvider adapts a langchaingo model to ChatProvider. It works
// with any backend langchaingo supports (OpenAI-compatible servers,
// Ollama, Anthropic) as long as the model handles tool calling.
type LangchainProvider struct {
	model llms.Model
}

// NewLangchainProvider wraps a langchaingo model.
func NewLangchainProvider(model llms.Model) *LangchainProvider {
	return &LangchainProvider{model: model}
}

// Complete sends the conversation and returns the model's reply.
func (p *LangchainProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "LangchainProvider.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.Int("message_count", len(req.Messages)),
		attribute.Int("tool_count", len(req.Tools)),
	)

	content, err := toMessageContent(req.Messages)
	if err != nil {
		return nil, err
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if len(req.Tools) > 0 {
		opts = append(opts, llms.WithTools(toTools(req.Tools)))
	}

	resp, err := p.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	out := &Response{
		Content: choice.Content,
		Usage:   usageFromInfo(choice.GenerationInfo),
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: json.RawMessage(tc.FunctionCall.Arguments),
		})
	}

	span.SetAttributes(
		attribute.Int("tool_calls", len(out.ToolCalls)),
		attribute.Int("total_tokens", out.Usage.TotalTokens),
	)
	return out, nil
}

// toMessageContent converts the message history to langchaingo parts.
func toMessageContent(messages []Message) ([]llms.MessageContent, error) {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		case RoleUser:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		case RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextPart(m.Content))
			}
			for _, tc := range m.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, mc)
		case RoleTool:
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       m.Name,
					Content:    m.Content,
				}},
			})
		default:
			return nil, fmt.Errorf("unknown message role %q", m.Role)
		}
	}
	return out, nil
}

// toTools converts tool specs to langchaingo function definitions.
func toTools(specs []ToolSpec) []llms.Tool {
	out := make([]llms.Tool, len(specs))
	for i, s := range specs {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		}
	}
	return out
}

// usageFromInfo digs token counts out of GenerationInfo. Providers use
// different key spellings.
func usageFromInfo(info map[string]any) TokenUsage {
	var usage TokenUsage
	usage.PromptTokens = intFromInfo(info, "PromptTokens", "prompt_tokens", "input_tokens")
	usage.CompletionTokens = intFromInfo(info, "CompletionTokens", "completion_tokens", "output_tokens")
	usage.TotalTokens = intFromInfo(info, "TotalTokens", "total_tokens")
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
