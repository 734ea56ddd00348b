package reranker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

const listwisePromptHeader = `You are a relevance judge. Score how well each numbered passage answers the query. Judge every passage.

Query: %s

Passages:
%s
Reply with JSON only: [{"id": <passage number>, "score": <0.0-1.0>}, ...]`

// listwiseSnippetLen caps each passage in the prompt so large candidate
// lists fit the model context.
const listwiseSnippetLen = 500

// LLMListwise scores the whole candidate list with one LLM call. Cheaper
// than pointwise for large lists, but the model may skip entries; skipped
// chunks keep their retrieval score.
type LLMListwise struct {
	provider llm.ChatProvider
	metrics  *Metrics
	logger   *zap.Logger
}

// NewLLMListwise creates a listwise LLM reranker.
func NewLLMListwise(provider llm.ChatProvider, logger *zap.Logger) (*LLMListwise, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderRequired, StrategyLLMListwise)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMListwise{
		provider: provider,
		metrics:  NewMetrics(logger),
		logger:   logger,
	}, nil
}

// Strategy implements Reranker.
func (r *LLMListwise) Strategy() Strategy { return StrategyLLMListwise }

// Rerank implements Reranker.
func (r *LLMListwise) Rerank(ctx context.Context, query string, chunks []retrieval.RetrievedChunk, topK int) ([]Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	start := time.Now()
	defer func() { r.metrics.RecordDuration(ctx, StrategyLLMListwise, time.Since(start)) }()

	// Pre-seed every chunk with its retrieval score; parsed judgments
	// overwrite, anything the model skipped stays usable.
	norm := normalizedFused(chunks)
	results := make([]Result, len(chunks))
	for i, chunk := range chunks {
		results[i] = Result{
			RetrievedChunk: chunk,
			OriginalRank:   i,
			RerankedScore:  norm[i],
			Strategy:       StrategyLLMListwise,
		}
	}

	resp, err := r.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: r.buildPrompt(query, chunks)},
		},
	})
	if err != nil {
		r.metrics.RecordFallback(ctx, StrategyLLMListwise, "call")
		r.logger.Warn("listwise call failed, using retrieval order", zap.Error(err))
		return sortAndTruncate(results, topK), nil
	}

	var judged []struct {
		ID    int     `json:"id"`
		Score float64 `json:"score"`
	}
	if err := llm.UnmarshalLenient(resp.Content, &judged); err != nil {
		r.metrics.RecordFallback(ctx, StrategyLLMListwise, "call")
		r.logger.Warn("listwise output unparseable, using retrieval order", zap.Error(err))
		return sortAndTruncate(results, topK), nil
	}

	for _, j := range judged {
		// Passage ids are 1-based prompt positions.
		idx := j.ID - 1
		if idx < 0 || idx >= len(results) {
			continue
		}
		results[idx].RerankedScore = clamp01(j.Score)
	}

	return sortAndTruncate(results, topK), nil
}

// buildPrompt numbers the passages 1..n.
func (r *LLMListwise) buildPrompt(query string, chunks []retrieval.RetrievedChunk) string {
	var sb strings.Builder
	for i, chunk := range chunks {
		content := chunk.Content
		if len(content) > listwiseSnippetLen {
			content = content[:listwiseSnippetLen] + "..."
		}
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, content)
	}
	return fmt.Sprintf(listwisePromptHeader, query, sb.String())
}

// Close implements Reranker.
func (r *LLMListwise) Close() error { return nil }
