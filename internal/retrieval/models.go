package retrieval

// Method identifies how a chunk was retrieved.
type Method string

const (
	// MethodVector marks results from embedding similarity search.
	MethodVector Method = "vector"
	// MethodKeyword marks results from BM25 keyword scoring.
	MethodKeyword Method = "keyword"
	// MethodHybrid marks results found by both methods and fused.
	MethodHybrid Method = "hybrid"
)

// RetrievedChunk is a passage returned by retrieval.
//
// ChunkID is the sole identity used for deduplication: repeated retrieval
// calls within a session collapse onto the first-seen chunk.
type RetrievedChunk struct {
	ChunkID       string   `json:"chunk_id"`
	DocumentID    string   `json:"document_id"`
	DocumentTitle string   `json:"document_title"`
	Content       string   `json:"content"`
	VectorScore   float64  `json:"vector_score"`
	BM25Score     float64  `json:"bm25_score"`
	FusedScore    float64  `json:"fused_score"`
	Method        Method   `json:"retrieval_method"`
	PageNumber    int      `json:"page_number,omitempty"`
	Section       string   `json:"section,omitempty"`
	Headings      []string `json:"headings,omitempty"`
}

// RankedCandidate is one entry of a single ranking. Rank is 1-based within
// that ranking only; Score is the raw score of the producing method.
type RankedCandidate struct {
	ID    string
	Rank  int
	Score float64
}

// Ranking is an ordered candidate list produced by one retrieval method.
type Ranking struct {
	Method     Method
	Candidates []RankedCandidate
}
