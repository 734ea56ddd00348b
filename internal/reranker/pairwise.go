package reranker

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

const pairwisePrompt = `You are a relevance judge. Which passage better answers the query?

Query: %s

Passage A:
%s

Passage B:
%s

Reply with exactly one letter: A or B.`

// DefaultMaxPairs caps the sampled comparisons per rerank call.
const DefaultMaxPairs = 20

// Pairwise compares sampled chunk pairs with an LLM and ranks chunks by
// win count. Comparisons are capped at min(2n, maxPairs) so cost grows
// linearly, not quadratically, with the candidate list.
type Pairwise struct {
	provider llm.ChatProvider
	maxPairs int
	seed     int64
	seeded   bool
	metrics  *Metrics
	logger   *zap.Logger
}

// PairwiseOption configures Pairwise.
type PairwiseOption func(*Pairwise)

// WithMaxPairs caps comparisons per call.
func WithMaxPairs(n int) PairwiseOption {
	return func(r *Pairwise) {
		if n > 0 {
			r.maxPairs = n
		}
	}
}

// WithSeed fixes the pair-sampling seed for reproducible runs.
func WithSeed(seed int64) PairwiseOption {
	return func(r *Pairwise) {
		r.seed = seed
		r.seeded = true
	}
}

// NewPairwise creates a pairwise LLM reranker.
func NewPairwise(provider llm.ChatProvider, logger *zap.Logger, opts ...PairwiseOption) (*Pairwise, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderRequired, StrategyPairwise)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Pairwise{
		provider: provider,
		maxPairs: DefaultMaxPairs,
		metrics:  NewMetrics(logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Strategy implements Reranker.
func (r *Pairwise) Strategy() Strategy { return StrategyPairwise }

// Rerank implements Reranker.
func (r *Pairwise) Rerank(ctx context.Context, query string, chunks []retrieval.RetrievedChunk, topK int) ([]Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}
	if len(chunks) == 1 {
		return fallbackResults(chunks, StrategyPairwise, topK), nil
	}

	start := time.Now()
	defer func() { r.metrics.RecordDuration(ctx, StrategyPairwise, time.Since(start)) }()

	pairs := r.samplePairs(len(chunks))
	wins := make([]float64, len(chunks))
	judged := 0

	for _, p := range pairs {
		winner, err := r.compare(ctx, query, chunks[p[0]].Content, chunks[p[1]].Content)
		if err != nil {
			r.logger.Warn("pairwise comparison failed",
				zap.String("chunk_a", chunks[p[0]].ChunkID),
				zap.String("chunk_b", chunks[p[1]].ChunkID),
				zap.Error(err),
			)
			continue
		}
		judged++
		if winner == 0 {
			wins[p[0]]++
		} else {
			wins[p[1]]++
		}
	}

	// Nothing judged: retrieval order is all we have.
	if judged == 0 {
		r.metrics.RecordFallback(ctx, StrategyPairwise, "call")
		return fallbackResults(chunks, StrategyPairwise, topK), nil
	}

	var maxWins float64
	for _, w := range wins {
		if w > maxWins {
			maxWins = w
		}
	}

	results := make([]Result, len(chunks))
	for i, chunk := range chunks {
		score := 0.0
		if maxWins > 0 {
			score = wins[i] / maxWins
		}
		results[i] = Result{
			RetrievedChunk: chunk,
			OriginalRank:   i,
			RerankedScore:  score,
			Strategy:       StrategyPairwise,
		}
	}
	return sortAndTruncate(results, topK), nil
}

// samplePairs picks min(2n, maxPairs) distinct index pairs. Adjacent pairs
// in retrieval order come first so near-ties get compared; random pairs
// fill the remainder.
func (r *Pairwise) samplePairs(n int) [][2]int {
	budget := 2 * n
	if budget > r.maxPairs {
		budget = r.maxPairs
	}

	seen := make(map[[2]int]struct{})
	pairs := make([][2]int, 0, budget)
	add := func(a, b int) {
		if a == b {
			return
		}
		if a > b {
			a, b = b, a
		}
		key := [2]int{a, b}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		pairs = append(pairs, key)
	}

	for i := 0; i+1 < n && len(pairs) < budget; i++ {
		add(i, i+1)
	}

	seed := r.seed
	if !r.seeded {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	maxDistinct := n * (n - 1) / 2
	for len(pairs) < budget && len(pairs) < maxDistinct {
		add(rng.Intn(n), rng.Intn(n))
	}
	return pairs
}

// compare returns 0 if passage A wins, 1 if B wins.
func (r *Pairwise) compare(ctx context.Context, query, a, b string) (int, error) {
	resp, err := r.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(pairwisePrompt, query, a, b)},
		},
	})
	if err != nil {
		return 0, err
	}

	verdict := strings.ToUpper(strings.TrimSpace(resp.Content))
	switch {
	case strings.HasPrefix(verdict, "A"):
		return 0, nil
	case strings.HasPrefix(verdict, "B"):
		return 1, nil
	default:
		return 0, fmt.Errorf("unparseable verdict %q", resp.Content)
	}
}

// Close implements Reranker.
func (r *Pairwise) Close() error { return nil }
