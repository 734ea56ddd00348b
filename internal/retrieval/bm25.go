package retrieval

import (
	"math"
	"sort"
)

// BM25Params holds the Okapi BM25+ scoring constants.
type BM25Params struct {
	// K1 controls term-frequency saturation.
	K1 float64
	// B controls document-length normalization.
	B float64
	// K3 controls query-term-frequency saturation.
	K3 float64
	// Delta is the BM25+ additive floor, applied once per matching term so a
	// single match never scores zero.
	Delta float64
}

// DefaultBM25Params returns the tuned defaults.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75, K3: 8, Delta: 1.0}
}

// BM25Engine scores a candidate pool with Okapi BM25+.
//
// IDF is computed over whatever pool is passed to Rank, not a global corpus.
// When the pool is the output of vector search this skews IDF toward the
// query's semantic neighborhood, which is intended.
type BM25Engine struct {
	params    BM25Params
	tokenizer *Tokenizer
}

// NewBM25Engine creates an engine with the given parameters and tokenizer.
func NewBM25Engine(params BM25Params, tokenizer *Tokenizer) *BM25Engine {
	return &BM25Engine{params: params, tokenizer: tokenizer}
}

// Rank scores every chunk in the pool against the query and returns a
// ranking of the chunks that matched at least one query term, ordered by
// score descending (ties: id ascending). Chunks with no matching terms are
// omitted so they cannot collect reciprocal-rank credit downstream.
func (e *BM25Engine) Rank(query string, pool []RetrievedChunk) Ranking {
	queryTerms := e.tokenizer.Tokenize(query)
	if len(queryTerms) == 0 || len(pool) == 0 {
		return Ranking{Method: MethodKeyword}
	}

	// Query term frequencies for k3 saturation.
	qtf := make(map[string]int, len(queryTerms))
	for _, term := range queryTerms {
		qtf[term]++
	}

	// One tokenization pass over the pool: lengths, term frequencies, and
	// document frequencies.
	docTerms := make([]map[string]int, len(pool))
	docLens := make([]float64, len(pool))
	df := make(map[string]int)
	var totalLen float64

	for i, chunk := range pool {
		terms := e.tokenizer.Tokenize(chunk.Content)
		tf := make(map[string]int, len(terms))
		for _, term := range terms {
			tf[term]++
		}
		docTerms[i] = tf
		docLens[i] = float64(len(terms))
		totalLen += docLens[i]

		for term := range tf {
			if _, queried := qtf[term]; queried {
				df[term]++
			}
		}
	}

	n := float64(len(pool))
	avgLen := totalLen / n

	// Smoothed IDF over the local pool.
	idf := make(map[string]float64, len(qtf))
	for term := range qtf {
		d := float64(df[term])
		idf[term] = math.Log((n-d+0.5)/(d+0.5) + 1.0)
	}

	candidates := make([]RankedCandidate, 0, len(pool))
	for i, chunk := range pool {
		var score float64
		matched := false

		for term, q := range qtf {
			tf, ok := docTerms[i][term]
			if !ok {
				continue
			}
			matched = true

			sat := (float64(tf) * (e.params.K1 + 1)) /
				(float64(tf) + e.params.K1*(1-e.params.B+e.params.B*docLens[i]/avgLen))
			qWeight := (float64(q) * (e.params.K3 + 1)) / (float64(q) + e.params.K3)

			score += qWeight * idf[term] * (sat + e.params.Delta)
		}

		if matched {
			candidates = append(candidates, RankedCandidate{ID: chunk.ChunkID, Score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	return Ranking{Method: MethodKeyword, Candidates: candidates}
}
