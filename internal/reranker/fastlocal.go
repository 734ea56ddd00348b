package reranker

import (
	"context"

	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

// FastLocal reranks by lexical overlap between query and chunk terms,
// blended with the retrieval score. It costs microseconds and needs no
// model, so it is the default strategy and the latency floor the LLM
// strategies are measured against.
type FastLocal struct {
	tokenizer *retrieval.Tokenizer
}

// Blend weights between retrieval score and term overlap.
const (
	fastLocalOriginalWeight = 0.5
	fastLocalOverlapWeight  = 0.5
)

// NewFastLocal creates a fast lexical reranker.
func NewFastLocal(tokenizer *retrieval.Tokenizer) *FastLocal {
	return &FastLocal{tokenizer: tokenizer}
}

// Strategy implements Reranker.
func (r *FastLocal) Strategy() Strategy { return StrategyFastLocal }

// Rerank implements Reranker.
func (r *FastLocal) Rerank(ctx context.Context, query string, chunks []retrieval.RetrievedChunk, topK int) ([]Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	queryTerms := r.tokenizer.Tokenize(query)
	if len(queryTerms) == 0 {
		return fallbackResults(chunks, StrategyFastLocal, topK), nil
	}

	norm := normalizedFused(chunks)
	results := make([]Result, len(chunks))
	for i, chunk := range chunks {
		overlap := termOverlap(queryTerms, r.tokenizer.Tokenize(chunk.Content))
		results[i] = Result{
			RetrievedChunk: chunk,
			OriginalRank:   i,
			RerankedScore:  fastLocalOriginalWeight*norm[i] + fastLocalOverlapWeight*overlap,
			Strategy:       StrategyFastLocal,
		}
	}
	return sortAndTruncate(results, topK), nil
}

// Close implements Reranker.
func (r *FastLocal) Close() error { return nil }

// termOverlap returns the fraction of distinct query terms present in the
// chunk, in [0, 1].
func termOverlap(queryTerms, chunkTerms []string) float64 {
	chunkSet := make(map[string]struct{}, len(chunkTerms))
	for _, t := range chunkTerms {
		chunkSet[t] = struct{}{}
	}

	matched := make(map[string]struct{})
	distinct := make(map[string]struct{})
	for _, t := range queryTerms {
		distinct[t] = struct{}{}
		if _, ok := chunkSet[t]; ok {
			matched[t] = struct{}{}
		}
	}
	return float64(len(matched)) / float64(len(distinct))
}
