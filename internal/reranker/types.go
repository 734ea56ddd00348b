// Package reranker re-orders retrieved chunks by query relevance.
//
// Five strategies are available, trading quality against latency and cost:
// a lexical fast_local scorer, LLM pointwise and listwise judging, pairwise
// comparison sampling, and an ensemble combining lexical, LLM, and
// retrieval signals. Every LLM strategy degrades to retrieval order when
// the model misbehaves; reranking must never lose chunks.
package reranker

import (
	"context"
	"errors"
	"sort"

	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

// Strategy selects a reranking algorithm.
type Strategy string

const (
	// StrategyFastLocal scores by lexical term overlap. No LLM calls.
	StrategyFastLocal Strategy = "fast_local"
	// StrategyLLMPointwise scores each chunk independently with one LLM
	// call per chunk.
	StrategyLLMPointwise Strategy = "llm_pointwise"
	// StrategyLLMListwise scores the whole candidate list in one LLM call.
	StrategyLLMListwise Strategy = "llm_listwise"
	// StrategyPairwise compares sampled chunk pairs and ranks by wins.
	StrategyPairwise Strategy = "pairwise"
	// StrategyEnsemble combines lexical, pointwise, and retrieval scores.
	StrategyEnsemble Strategy = "ensemble"
)

var (
	// ErrNilContext is returned when a nil context is passed to Rerank.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrUnknownStrategy indicates an unrecognized strategy name.
	ErrUnknownStrategy = errors.New("unknown reranking strategy")

	// ErrProviderRequired indicates an LLM strategy was requested without
	// a chat provider.
	ErrProviderRequired = errors.New("strategy requires an LLM provider")
)

// Result is one reranked chunk.
type Result struct {
	retrieval.RetrievedChunk

	// OriginalRank is the 0-indexed position before reranking.
	OriginalRank int `json:"original_rank"`

	// RerankedScore is the strategy's relevance score, normalized to
	// [0, 1] where the strategy can guarantee it.
	RerankedScore float64 `json:"reranked_score"`

	// Strategy produced this score.
	Strategy Strategy `json:"strategy"`

	// Reasoning is the model's explanation, when the strategy yields one.
	Reasoning string `json:"reasoning,omitempty"`
}

// Reranker re-orders chunks by relevance to the query.
type Reranker interface {
	// Rerank returns the chunks sorted by RerankedScore descending,
	// truncated to topK (<= 0 keeps all). The input slice is not mutated.
	Rerank(ctx context.Context, query string, chunks []retrieval.RetrievedChunk, topK int) ([]Result, error)

	// Strategy identifies the algorithm.
	Strategy() Strategy

	// Close releases resources.
	Close() error
}

// sortAndTruncate orders results by score descending, breaking ties by
// original rank so equal scores keep retrieval order, then truncates.
func sortAndTruncate(results []Result, topK int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RerankedScore != results[j].RerankedScore {
			return results[i].RerankedScore > results[j].RerankedScore
		}
		return results[i].OriginalRank < results[j].OriginalRank
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// normalizedFused returns each chunk's fused score divided by the pool
// maximum, or zero when all scores are zero. Fallback paths use it so
// degraded scores stay on the same [0, 1] scale as real ones.
func normalizedFused(chunks []retrieval.RetrievedChunk) []float64 {
	var max float64
	for _, c := range chunks {
		if c.FusedScore > max {
			max = c.FusedScore
		}
	}
	out := make([]float64, len(chunks))
	if max == 0 {
		return out
	}
	for i, c := range chunks {
		out[i] = c.FusedScore / max
	}
	return out
}

// fallbackResults preserves retrieval order with normalized fused scores.
func fallbackResults(chunks []retrieval.RetrievedChunk, strategy Strategy, topK int) []Result {
	norm := normalizedFused(chunks)
	results := make([]Result, len(chunks))
	for i, c := range chunks {
		results[i] = Result{
			RetrievedChunk: c,
			OriginalRank:   i,
			RerankedScore:  norm[i],
			Strategy:       strategy,
		}
	}
	return sortAndTruncate(results, topK)
}

// clamp01 bounds a model-produced score to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
