// Package retrieval implements hybrid document retrieval: vector similarity
// search, Okapi BM25+ keyword scoring, and reciprocal rank fusion.
//
// The three stages compose into a HybridSearcher:
//
//	vector search ──┐
//	                ├─> rank fusion ─> ranked, deduplicated RetrievedChunks
//	BM25 scoring ───┘
//
// BM25 scores the candidate pool produced by the overfetched vector search,
// so its IDF statistics are local to that pool rather than the whole corpus.
// This is a deliberate performance/quality trade-off: it avoids maintaining a
// global term index while still separating common from rare query terms
// within the candidates that matter.
package retrieval
