// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backing store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Metadata keys used for chunk payloads.
const (
	// MetaDocumentID is the owning document's identifier.
	MetaDocumentID = "document_id"
	// MetaDocumentTitle is the owning document's display title.
	MetaDocumentTitle = "document_title"
	// MetaPageNumber is the 1-based page number within the document.
	MetaPageNumber = "page_number"
	// MetaSection is the section label the chunk was extracted from.
	MetaSection = "section"
	// MetaHeadings is the newline-joined heading path of the chunk.
	MetaHeadings = "headings"
	// MetaReady marks chunks whose document finished ingestion ("true"/"false").
	// Queries with readyOnly set only see chunks with MetaReady == "true".
	MetaReady = "ready"
)

// Document is a chunk to be stored with its embedding payload.
type Document struct {
	// ID is the chunk identifier, unique across the collection.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata carries the Meta* keys above plus any caller extras.
	// Values are strings across all backends.
	Metadata map[string]string
}

// SearchResult is a nearest-neighbor match.
type SearchResult struct {
	// ID is the chunk identifier.
	ID string

	// Content is the chunk text.
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the stored chunk metadata.
	Metadata map[string]string
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations.
//
// The interface is transport-agnostic: ChromemStore runs embedded,
// QdrantStore speaks gRPC to an external server. Query works on a caller
// supplied embedding so the retrieval layer controls how the query text is
// embedded; AddDocuments embeds internally.
type Store interface {
	// AddDocuments embeds and stores chunks, returning their ids.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Query returns up to k nearest neighbors of the embedding, ordered by
	// similarity descending. With readyOnly set, chunks whose document has
	// not finished ingestion are excluded. An empty store yields an empty
	// result, not an error.
	Query(ctx context.Context, embedding []float32, k int, readyOnly bool) ([]SearchResult, error)

	// DeleteDocuments deletes chunks by id.
	DeleteDocuments(ctx context.Context, ids []string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
