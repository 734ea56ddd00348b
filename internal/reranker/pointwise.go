package reranker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

const pointwisePrompt = `You are a relevance judge. Score how well the passage answers the query.

Query: %s

Passage:
%s

Reply with JSON only: {"score": <0.0-1.0>, "reason": "<one sentence>"}`

// LLMPointwise scores each chunk with an independent LLM call. Calls fan
// out concurrently under a shared rate limit; a chunk whose call fails
// keeps its retrieval score instead of failing the whole rerank.
type LLMPointwise struct {
	provider    llm.ChatProvider
	limiter     *rate.Limiter
	concurrency int
	metrics     *Metrics
	logger      *zap.Logger
}

// PointwiseOption configures LLMPointwise.
type PointwiseOption func(*LLMPointwise)

// WithRateLimit bounds LLM calls per second. <= 0 disables limiting.
func WithRateLimit(rps float64) PointwiseOption {
	return func(r *LLMPointwise) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithConcurrency bounds in-flight LLM calls. Default 8.
func WithConcurrency(n int) PointwiseOption {
	return func(r *LLMPointwise) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewLLMPointwise creates a pointwise LLM reranker.
func NewLLMPointwise(provider llm.ChatProvider, logger *zap.Logger, opts ...PointwiseOption) (*LLMPointwise, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderRequired, StrategyLLMPointwise)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &LLMPointwise{
		provider:    provider,
		concurrency: 8,
		metrics:     NewMetrics(logger),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Strategy implements Reranker.
func (r *LLMPointwise) Strategy() Strategy { return StrategyLLMPointwise }

// Rerank implements Reranker.
func (r *LLMPointwise) Rerank(ctx context.Context, query string, chunks []retrieval.RetrievedChunk, topK int) ([]Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	start := time.Now()
	defer func() { r.metrics.RecordDuration(ctx, StrategyLLMPointwise, time.Since(start)) }()

	norm := normalizedFused(chunks)
	results := make([]Result, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			score, reason, err := r.scoreOne(gctx, query, chunk.Content)
			if err != nil {
				// Keep the retrieval score for this chunk only.
				r.metrics.RecordFallback(gctx, StrategyLLMPointwise, "item")
				r.logger.Warn("pointwise scoring failed, keeping retrieval score",
					zap.String("chunk_id", chunk.ChunkID),
					zap.Error(err),
				)
				score, reason = norm[i], ""
			}
			results[i] = Result{
				RetrievedChunk: chunk,
				OriginalRank:   i,
				RerankedScore:  score,
				Strategy:       StrategyLLMPointwise,
				Reasoning:      reason,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return sortAndTruncate(results, topK), nil
}

// scoreOne judges a single passage.
func (r *LLMPointwise) scoreOne(ctx context.Context, query, passage string) (float64, string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return 0, "", err
		}
	}

	resp, err := r.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(pointwisePrompt, query, passage)},
		},
	})
	if err != nil {
		return 0, "", err
	}

	var judged struct {
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	}
	if err := llm.UnmarshalLenient(resp.Content, &judged); err != nil {
		return 0, "", fmt.Errorf("parsing judge output: %w", err)
	}
	return clamp01(judged.Score), judged.Reason, nil
}

// Close implements Reranker.
func (r *LLMPointwise) Close() error { return nil }
