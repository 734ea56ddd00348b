package retrieval

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/ragd/internal/logging"
)

var searcherTracer = otel.Tracer("ragd.retrieval.searcher")

// Options control a single search call.
type Options struct {
	// TopK is the number of chunks to return. <= 0 uses DefaultTopK.
	TopK int

	// OverfetchFactor widens the candidate pool to TopK*OverfetchFactor
	// before scoring and fusion. <= 0 uses DefaultOverfetchFactor.
	OverfetchFactor int

	// MinScore drops fused candidates scoring below it. Zero keeps all.
	MinScore float64

	// Method selects vector, keyword, or hybrid retrieval. Empty means
	// hybrid.
	Method Method
}

// Defaults for search options.
const (
	DefaultTopK            = 10
	DefaultOverfetchFactor = 3
)

func (o *Options) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.OverfetchFactor <= 0 {
		o.OverfetchFactor = DefaultOverfetchFactor
	}
	if o.Method == "" {
		o.Method = MethodHybrid
	}
}

// HybridSearcher composes vector similarity, BM25 keyword scoring, and
// reciprocal rank fusion into one retrieval call.
//
// The candidate pool always comes from the vector store: overfetched
// nearest neighbors of the query. Keyword mode re-scores that pool with
// BM25; hybrid mode runs both rankings and fuses them.
type HybridSearcher struct {
	vector *VectorSearcher
	engine *BM25Engine
	fuser  *Fuser
	logger *logging.Logger
}

// NewHybridSearcher creates a searcher from its three components.
func NewHybridSearcher(vector *VectorSearcher, engine *BM25Engine, fuser *Fuser, logger *logging.Logger) *HybridSearcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HybridSearcher{vector: vector, engine: engine, fuser: fuser, logger: logger}
}

// Search retrieves the topK chunks for the query using the configured
// method. An empty store yields an empty slice.
func (s *HybridSearcher) Search(ctx context.Context, query string, opts Options) ([]RetrievedChunk, error) {
	opts.applyDefaults()

	ctx, span := searcherTracer.Start(ctx, "HybridSearcher.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("method", string(opts.Method)),
		attribute.Int("top_k", opts.TopK),
	)

	pool, err := s.vector.Search(ctx, query, opts.TopK*opts.OverfetchFactor)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetching candidate pool: %w", err)
	}
	if len(pool) == 0 {
		return []RetrievedChunk{}, nil
	}

	var rankings []Ranking
	switch opts.Method {
	case MethodVector:
		rankings = []Ranking{vectorRanking(pool)}
	case MethodKeyword:
		rankings = []Ranking{s.engine.Rank(query, pool)}
	case MethodHybrid:
		// The two rankings are independent given the pool; BM25 tokenizes
		// every candidate, so run them off the hot path together.
		var vr, kr Ranking
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			vr = vectorRanking(pool)
			return gctx.Err()
		})
		g.Go(func() error {
			kr = s.engine.Rank(query, pool)
			return gctx.Err()
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		rankings = []Ranking{vr, kr}
	default:
		return nil, fmt.Errorf("unknown retrieval method %q", opts.Method)
	}

	fused := s.fuser.Fuse(rankings, opts.TopK, opts.MinScore)
	chunks := assemble(pool, rankings, fused)

	span.SetAttributes(attribute.Int("results_count", len(chunks)))
	s.logger.Debug(ctx, "search complete",
		zap.String("method", string(opts.Method)),
		zap.Int("pool_size", len(pool)),
		zap.Int("results", len(chunks)),
	)
	return chunks, nil
}

// vectorRanking turns a similarity-ordered pool into a ranking.
func vectorRanking(pool []RetrievedChunk) Ranking {
	candidates := make([]RankedCandidate, len(pool))
	for i, chunk := range pool {
		candidates[i] = RankedCandidate{ID: chunk.ChunkID, Rank: i + 1, Score: chunk.VectorScore}
	}
	return Ranking{Method: MethodVector, Candidates: candidates}
}

// assemble materializes the fused ordering back into chunks, annotated with
// each method's raw score and the fused score.
func assemble(pool []RetrievedChunk, rankings []Ranking, fused []FusedCandidate) []RetrievedChunk {
	byID := make(map[string]RetrievedChunk, len(pool))
	for _, chunk := range pool {
		byID[chunk.ChunkID] = chunk
	}

	bm25Scores := make(map[string]float64)
	for _, r := range rankings {
		if r.Method != MethodKeyword {
			continue
		}
		for _, c := range r.Candidates {
			bm25Scores[c.ID] = c.Score
		}
	}

	out := make([]RetrievedChunk, 0, len(fused))
	for _, fc := range fused {
		chunk, ok := byID[fc.ID]
		if !ok {
			continue
		}
		chunk.BM25Score = bm25Scores[fc.ID]
		chunk.FusedScore = fc.FusedScore
		chunk.Method = fc.Method
		out = append(out, chunk)
	}
	return out
}
