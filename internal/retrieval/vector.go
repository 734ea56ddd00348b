package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var vectorTracer = otel.Tracer("ragd.retrieval.vector")

// QueryEmbedder embeds query text. Satisfied by embeddings.Provider.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher retrieves chunks by embedding similarity.
type VectorSearcher struct {
	store    vectorstore.Store
	embedder QueryEmbedder
	logger   *logging.Logger
}

// NewVectorSearcher creates a vector searcher over the given store.
func NewVectorSearcher(store vectorstore.Store, embedder QueryEmbedder, logger *logging.Logger) *VectorSearcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &VectorSearcher{store: store, embedder: embedder, logger: logger}
}

// Search embeds the query and returns up to limit chunks from ready
// documents, ordered by similarity descending (ties: chunk id ascending).
// An empty store yields an empty slice, not an error.
func (s *VectorSearcher) Search(ctx context.Context, query string, limit int) ([]RetrievedChunk, error) {
	ctx, span := vectorTracer.Start(ctx, "VectorSearcher.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.store.Query(ctx, embedding, limit, true)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	chunks := make([]RetrievedChunk, len(results))
	for i, r := range results {
		chunks[i] = chunkFromResult(r)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].VectorScore != chunks[j].VectorScore {
			return chunks[i].VectorScore > chunks[j].VectorScore
		}
		return chunks[i].ChunkID < chunks[j].ChunkID
	})

	span.SetAttributes(attribute.Int("results_count", len(chunks)))
	s.logger.Debug(ctx, "vector search complete",
		zap.Int("limit", limit),
		zap.Int("results", len(chunks)),
	)
	return chunks, nil
}

// chunkFromResult maps a stored chunk back into retrieval's shape.
func chunkFromResult(r vectorstore.SearchResult) RetrievedChunk {
	chunk := RetrievedChunk{
		ChunkID:       r.ID,
		Content:       r.Content,
		VectorScore:   float64(r.Score),
		Method:        MethodVector,
		DocumentID:    r.Metadata[vectorstore.MetaDocumentID],
		DocumentTitle: r.Metadata[vectorstore.MetaDocumentTitle],
		Section:       r.Metadata[vectorstore.MetaSection],
	}
	if page, err := strconv.Atoi(r.Metadata[vectorstore.MetaPageNumber]); err == nil {
		chunk.PageNumber = page
	}
	if headings := r.Metadata[vectorstore.MetaHeadings]; headings != "" {
		chunk.Headings = strings.Split(headings, "\n")
	}
	return chunk
}
