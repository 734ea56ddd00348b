package reranker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

// EnsembleWeights balance the three ensemble components.
type EnsembleWeights struct {
	// Cross weights the lexical cross-check (fast_local overlap).
	Cross float64
	// LLM weights the pointwise model judgment.
	LLM float64
	// Original weights the retrieval fused score.
	Original float64
}

// DefaultEnsembleWeights returns the tuned 0.4/0.4/0.2 split.
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{Cross: 0.4, LLM: 0.4, Original: 0.2}
}

// Validate rejects weight sets that cannot produce a score.
func (w EnsembleWeights) Validate() error {
	if w.Cross < 0 || w.LLM < 0 || w.Original < 0 {
		return fmt.Errorf("ensemble weights must be non-negative: %+v", w)
	}
	if w.Cross+w.LLM+w.Original == 0 {
		return fmt.Errorf("ensemble weights must not all be zero")
	}
	return nil
}

// Ensemble blends lexical overlap, pointwise LLM judgment, and the
// retrieval score into one weighted sum:
//
//	score = (wc*cross + wl*llm + wo*original) / (wc + wl + wo)
//
// When the LLM component fails the blend degrades to the remaining two
// components with the denominator shrunk to match, rather than failing
// the rerank.
type Ensemble struct {
	local     *FastLocal
	pointwise *LLMPointwise
	weights   EnsembleWeights
	metrics   *Metrics
	logger    *zap.Logger
}

// NewEnsemble creates an ensemble reranker. pointwise may be nil, which
// permanently degrades the blend to lexical + retrieval.
func NewEnsemble(local *FastLocal, pointwise *LLMPointwise, weights EnsembleWeights, logger *zap.Logger) (*Ensemble, error) {
	if local == nil {
		return nil, fmt.Errorf("ensemble requires the fast_local component")
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ensemble{
		local:     local,
		pointwise: pointwise,
		weights:   weights,
		metrics:   NewMetrics(logger),
		logger:    logger,
	}, nil
}

// Strategy implements Reranker.
func (r *Ensemble) Strategy() Strategy { return StrategyEnsemble }

// Rerank implements Reranker.
func (r *Ensemble) Rerank(ctx context.Context, query string, chunks []retrieval.RetrievedChunk, topK int) ([]Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	start := time.Now()
	defer func() { r.metrics.RecordDuration(ctx, StrategyEnsemble, time.Since(start)) }()

	// termOverlap component, isolated from fast_local's own blend.
	queryTerms := r.local.tokenizer.Tokenize(query)
	cross := make(map[string]float64, len(chunks))
	for _, chunk := range chunks {
		cross[chunk.ChunkID] = termOverlap(queryTerms, r.local.tokenizer.Tokenize(chunk.Content))
	}

	llmScores, llmOK := r.llmComponent(ctx, query, chunks)

	weights := r.weights
	if !llmOK {
		weights.LLM = 0
	}
	denom := weights.Cross + weights.LLM + weights.Original
	if denom == 0 {
		r.metrics.RecordFallback(ctx, StrategyEnsemble, "call")
		return fallbackResults(chunks, StrategyEnsemble, topK), nil
	}

	norm := normalizedFused(chunks)
	results := make([]Result, len(chunks))
	for i, chunk := range chunks {
		score := weights.Cross*cross[chunk.ChunkID] + weights.Original*norm[i]
		if llmOK {
			score += weights.LLM * llmScores[chunk.ChunkID]
		}
		results[i] = Result{
			RetrievedChunk: chunk,
			OriginalRank:   i,
			RerankedScore:  score / denom,
			Strategy:       StrategyEnsemble,
		}
	}
	return sortAndTruncate(results, topK), nil
}

// llmComponent runs the pointwise judge, returning ok=false when the
// component is missing or failed outright.
func (r *Ensemble) llmComponent(ctx context.Context, query string, chunks []retrieval.RetrievedChunk) (map[string]float64, bool) {
	if r.pointwise == nil || r.weights.LLM == 0 {
		return nil, false
	}

	judged, err := r.pointwise.Rerank(ctx, query, chunks, 0)
	if err != nil {
		r.metrics.RecordFallback(ctx, StrategyEnsemble, "component")
		r.logger.Warn("ensemble LLM component failed, degrading to two components", zap.Error(err))
		return nil, false
	}

	scores := make(map[string]float64, len(judged))
	for _, res := range judged {
		scores[res.ChunkID] = res.RerankedScore
	}
	return scores, true
}

// Close implements Reranker.
func (r *Ensemble) Close() error {
	if r.pointwise != nil {
		return r.pointwise.Close()
	}
	return nil
}
