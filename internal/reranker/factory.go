package reranker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

// Config selects and tunes a reranking strategy.
type Config struct {
	// Strategy names the algorithm. Empty means fast_local.
	Strategy Strategy

	// Language feeds the lexical tokenizer ("en" or "id").
	Language string

	// Weights tune the ensemble blend. Zero value uses the defaults.
	Weights EnsembleWeights

	// MinScore drops reranked results scoring below it. Zero keeps all.
	MinScore float64

	// MaxPairs caps pairwise comparisons. <= 0 uses DefaultMaxPairs.
	MaxPairs int

	// RequestsPerSecond limits pointwise LLM calls. <= 0 disables.
	RequestsPerSecond float64

	// Concurrency bounds in-flight pointwise calls. <= 0 uses 8.
	Concurrency int
}

// New builds the configured reranker. provider may be nil for fast_local;
// the ensemble degrades without it, all other LLM strategies require it.
func New(cfg Config, provider llm.ChatProvider, logger *zap.Logger) (Reranker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tokenizer := retrieval.NewTokenizer(cfg.Language)

	var (
		r   Reranker
		err error
	)
	switch cfg.Strategy {
	case StrategyFastLocal, "":
		r = NewFastLocal(tokenizer)

	case StrategyLLMPointwise:
		r, err = NewLLMPointwise(provider, logger,
			WithRateLimit(cfg.RequestsPerSecond),
			WithConcurrency(cfg.Concurrency),
		)

	case StrategyLLMListwise:
		r, err = NewLLMListwise(provider, logger)

	case StrategyPairwise:
		r, err = NewPairwise(provider, logger, WithMaxPairs(cfg.MaxPairs))

	case StrategyEnsemble:
		weights := cfg.Weights
		if weights == (EnsembleWeights{}) {
			weights = DefaultEnsembleWeights()
		}
		var pointwise *LLMPointwise
		if provider != nil {
			pointwise, err = NewLLMPointwise(provider, logger,
				WithRateLimit(cfg.RequestsPerSecond),
				WithConcurrency(cfg.Concurrency),
			)
			if err != nil {
				return nil, err
			}
		}
		r, err = NewEnsemble(NewFastLocal(tokenizer), pointwise, weights, logger)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
	if err != nil {
		return nil, err
	}
	if cfg.MinScore > 0 {
		r = &thresholded{Reranker: r, minScore: cfg.MinScore}
	}
	return r, nil
}

// thresholded drops reranked results below a score floor after the
// wrapped strategy has finished.
type thresholded struct {
	Reranker
	minScore float64
}

func (t *thresholded) Rerank(ctx context.Context, query string, chunks []retrieval.RetrievedChunk, topK int) ([]Result, error) {
	results, err := t.Reranker.Rerank(ctx, query, chunks, topK)
	if err != nil {
		return nil, err
	}
	kept := results[:0]
	for _, r := range results {
		if r.RerankedScore >= t.minScore {
			kept = append(kept, r)
		}
	}
	return kept, nil
}
