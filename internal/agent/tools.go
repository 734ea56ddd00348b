package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/reranker"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/session"
)

// Tool names exposed to the reasoning loop.
const (
	toolSearchDocuments  = "search_documents"
	toolExpandQuery      = "expand_query"
	toolDecomposeQuery   = "decompose_query"
	toolVerifyClaim      = "verify_claim"
	toolSynthesizeAnswer = "synthesize_answer"
)

const (
	// defaultSubQuestions bounds decompose_query when the model omits a limit.
	defaultSubQuestions = 3

	// sourceSnippetLen bounds per-chunk content in synthesis and
	// verification prompts.
	sourceSnippetLen = 800

	// verifyContextChunks bounds how many session chunks feed verify_claim
	// when the model supplies no context of its own.
	verifyContextChunks = 6
)

// Execution is the outcome of one tool call.
type Execution struct {
	// Output is the JSON (or plain text, for synthesis) handed back to the
	// model as the tool result.
	Output string

	// Type classifies the step recorded for this call.
	Type StepType
}

// SearchDefaults carries configured retrieval knobs into search_documents.
// TopK fills in when the model omits top_k; OverfetchFactor and MinScore
// apply to every search. RerankTopK, when positive, bounds how many
// reranked results a search returns.
type SearchDefaults struct {
	TopK            int
	OverfetchFactor int
	MinScore        float64
	RerankTopK      int
}

// Tools dispatches the reasoning loop's tool calls onto the retrieval
// stack. All methods are safe for concurrent use; session mutation is
// serialized by the session itself.
type Tools struct {
	searcher *retrieval.HybridSearcher
	reranker reranker.Reranker
	provider llm.ChatProvider
	defaults SearchDefaults
	logger   *logging.Logger
}

// NewTools wires the tool set. reranker may be nil to skip re-scoring of
// search results.
func NewTools(searcher *retrieval.HybridSearcher, rr reranker.Reranker, provider llm.ChatProvider, defaults SearchDefaults, logger *logging.Logger) *Tools {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tools{searcher: searcher, reranker: rr, provider: provider, defaults: defaults, logger: logger}
}

// Specs describes the tool set for the chat provider.
func (t *Tools) Specs() []llm.ToolSpec {
	return []llm.ToolSpec{
		{
			Name:        toolSearchDocuments,
			Description: "Search the document corpus. Returns ranked passages with citation numbers.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":    map[string]any{"type": "string", "description": "Search query."},
					"strategy": map[string]any{"type": "string", "enum": []string{"vector", "keyword", "hybrid"}, "description": "Retrieval method. Defaults to hybrid."},
					"top_k":    map[string]any{"type": "integer", "description": "Number of passages to return."},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolExpandQuery,
			Description: "Generate alternative phrasings of a query to widen retrieval.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolDecomposeQuery,
			Description: "Break a compound question into independent sub-questions. Search each sub-question in the same turn so the searches run in parallel.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":             map[string]any{"type": "string"},
					"max_sub_questions": map[string]any{"type": "integer", "description": "Upper bound on sub-questions. Defaults to 3."},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolVerifyClaim,
			Description: "Check whether a claim is supported by retrieved content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"claim":   map[string]any{"type": "string"},
					"context": map[string]any{"type": "string", "description": "Evidence to check against. Defaults to the passages retrieved so far."},
				},
				"required": []string{"claim"},
			},
		},
		{
			Name:        toolSynthesizeAnswer,
			Description: "Compose the final cited answer from the passages retrieved so far.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question": map[string]any{"type": "string"},
					"language": map[string]any{"type": "string", "enum": []string{"en", "id"}},
				},
				"required": []string{"question"},
			},
		},
	}
}

// Execute runs one tool call against the session. An unknown tool name
// returns an error wrapping llm.ErrToolNotFound; the orchestrator treats
// that as terminal.
func (t *Tools) Execute(ctx context.Context, sess *session.Session, call llm.ToolCall) (*Execution, error) {
	switch call.Name {
	case toolSearchDocuments:
		return t.searchDocuments(ctx, sess, call.Arguments)
	case toolExpandQuery:
		return t.expandQuery(ctx, call.Arguments)
	case toolDecomposeQuery:
		return t.decomposeQuery(ctx, call.Arguments)
	case toolVerifyClaim:
		return t.verifyClaim(ctx, sess, call.Arguments)
	case toolSynthesizeAnswer:
		return t.synthesizeAnswer(ctx, sess, call.Arguments)
	default:
		return nil, fmt.Errorf("%w: %q", llm.ErrToolNotFound, call.Name)
	}
}

type searchArgs struct {
	Query    string `json:"query"`
	Strategy string `json:"strategy"`
	TopK     int    `json:"top_k"`
}

type searchResult struct {
	Citation      int     `json:"citation"`
	ChunkID       string  `json:"chunk_id"`
	DocumentTitle string  `json:"document_title"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
}

func (t *Tools) searchDocuments(ctx context.Context, sess *session.Session, raw json.RawMessage) (*Execution, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("search_documents arguments: %w", err)
	}

	topK := args.TopK
	if topK <= 0 {
		topK = t.defaults.TopK
	}
	chunks, err := t.searcher.Search(ctx, args.Query, retrieval.Options{
		TopK:            topK,
		OverfetchFactor: t.defaults.OverfetchFactor,
		MinScore:        t.defaults.MinScore,
		Method:          retrieval.Method(args.Strategy),
	})
	if err != nil {
		return nil, fmt.Errorf("search_documents: %w", err)
	}

	scores := make(map[string]float64, len(chunks))
	for _, c := range chunks {
		scores[c.ChunkID] = c.FusedScore
	}
	reranked := false
	if t.reranker != nil && len(chunks) > 0 {
		rerankK := t.defaults.RerankTopK
		if rerankK <= 0 {
			rerankK = topK
		}
		results, rerr := t.reranker.Rerank(ctx, args.Query, chunks, rerankK)
		if rerr != nil {
			// Reranking never loses the answer: keep retrieval order.
			t.logger.Warn(ctx, "reranking failed, keeping retrieval order",
				zap.String("strategy", string(t.reranker.Strategy())),
				zap.Error(rerr))
		} else {
			reordered := make([]retrieval.RetrievedChunk, len(results))
			for i, r := range results {
				reordered[i] = r.RetrievedChunk
				scores[r.ChunkID] = r.RerankedScore
			}
			chunks = reordered
			reranked = true
		}
	}

	sess.AddChunks(chunks)
	out := make([]searchResult, len(chunks))
	for i, c := range chunks {
		out[i] = searchResult{
			Citation:      sess.Cite(c.ChunkID, c.DocumentTitle),
			ChunkID:       c.ChunkID,
			DocumentTitle: c.DocumentTitle,
			Content:       c.Content,
			Score:         scores[c.ChunkID],
		}
	}
	stepType := StepRetrieval
	if reranked {
		stepType = StepReranking
	}
	return marshalExecution(out, stepType)
}

type queryArgs struct {
	Query           string `json:"query"`
	MaxSubQuestions int    `json:"max_sub_questions"`
}

func (t *Tools) expandQuery(ctx context.Context, raw json.RawMessage) (*Execution, error) {
	var args queryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("expand_query arguments: %w", err)
	}

	prompt := fmt.Sprintf("Generate up to 3 alternative phrasings of the search query below that could surface different relevant documents. Respond with a JSON array of strings, nothing else.\n\nQuery: %s", args.Query)
	queries := t.queryList(ctx, toolExpandQuery, prompt, args.Query)
	return marshalExecution(queries, StepToolCall)
}

func (t *Tools) decomposeQuery(ctx context.Context, raw json.RawMessage) (*Execution, error) {
	var args queryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decompose_query arguments: %w", err)
	}
	limit := args.MaxSubQuestions
	if limit <= 0 {
		limit = defaultSubQuestions
	}

	prompt := fmt.Sprintf("Break the question below into at most %d independent sub-questions that can be researched separately. Respond with a JSON array of strings, nothing else.\n\nQuestion: %s", limit, args.Query)
	queries := t.queryList(ctx, toolDecomposeQuery, prompt, args.Query)
	if len(queries) > limit {
		queries = queries[:limit]
	}
	return marshalExecution(queries, StepToolCall)
}

// queryList runs a single completion expected to yield a JSON string array.
// Provider or parse failures fall back to the original query alone.
func (t *Tools) queryList(ctx context.Context, tool, prompt, fallback string) []string {
	resp, err := t.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		t.logger.Warn(ctx, "query generation failed, keeping original",
			zap.String("tool", tool), zap.Error(err))
		return []string{fallback}
	}

	var queries []string
	if err := llm.UnmarshalLenient(resp.Content, &queries); err != nil || len(queries) == 0 {
		t.logger.Warn(ctx, "unparseable query list, keeping original",
			zap.String("tool", tool), zap.Error(err))
		return []string{fallback}
	}
	return queries
}

type verifyArgs struct {
	Claim   string `json:"claim"`
	Context string `json:"context"`
}

type verifyVerdict struct {
	Supported  bool    `json:"supported"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
}

func (t *Tools) verifyClaim(ctx context.Context, sess *session.Session, raw json.RawMessage) (*Execution, error) {
	var args verifyArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("verify_claim arguments: %w", err)
	}

	evidence := args.Context
	if evidence == "" {
		var parts []string
		for i, c := range sess.Chunks() {
			if i >= verifyContextChunks {
				break
			}
			parts = append(parts, snippet(c.Content, sourceSnippetLen))
		}
		evidence = strings.Join(parts, "\n---\n")
	}

	prompt := fmt.Sprintf(`Does the evidence below support the claim? Respond with JSON only: {"supported": bool, "confidence": number 0.0-1.0, "evidence": "the decisive passage"}.

Claim: %s

Evidence:
%s`, args.Claim, evidence)

	// Verification failures are absorbed: an unverifiable claim reads as
	// unsupported with zero confidence.
	verdict := verifyVerdict{}
	resp, err := t.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		t.logger.Warn(ctx, "claim verification failed", zap.Error(err))
		return marshalExecution(verdict, StepToolCall)
	}
	if err := llm.UnmarshalLenient(resp.Content, &verdict); err != nil {
		t.logger.Warn(ctx, "unparseable verification verdict", zap.Error(err))
		verdict = verifyVerdict{}
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	} else if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}
	return marshalExecution(verdict, StepToolCall)
}

type synthesizeArgs struct {
	Question string `json:"question"`
	Language string `json:"language"`
}

func (t *Tools) synthesizeAnswer(ctx context.Context, sess *session.Session, raw json.RawMessage) (*Execution, error) {
	var args synthesizeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("synthesize_answer arguments: %w", err)
	}
	if args.Language == "" {
		args.Language = retrieval.DetectLanguage(args.Question)
	}

	answer, _, err := t.synthesize(ctx, args.Question, sess, args.Language)
	if err != nil {
		return nil, fmt.Errorf("synthesize_answer: %w", err)
	}
	return &Execution{Output: answer, Type: StepSynthesis}, nil
}

// synthesize composes an answer over the numbered sources accumulated in
// the session. Also used by the orchestrator for budget-exhaustion and
// resynthesis passes.
func (t *Tools) synthesize(ctx context.Context, question string, sess *session.Session, language string) (string, llm.TokenUsage, error) {
	resp, err := t.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: synthesisPrompt(question, t.sources(sess), language)},
		},
	})
	if err != nil {
		return "", llm.TokenUsage{}, fmt.Errorf("synthesis: %w", err)
	}
	return resp.Content, resp.Usage, nil
}

// sources renders the session's chunks as a numbered list keyed by their
// citation numbers.
func (t *Tools) sources(sess *session.Session) string {
	chunks := sess.Chunks()
	if len(chunks) == 0 {
		return "(no sources retrieved)"
	}

	var b strings.Builder
	for _, c := range chunks {
		n := sess.Cite(c.ChunkID, c.DocumentTitle)
		fmt.Fprintf(&b, "[%d] %s: %s\n", n, c.DocumentTitle, snippet(c.Content, sourceSnippetLen))
	}
	return b.String()
}

func marshalExecution(v any, stepType StepType) (*Execution, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool output: %w", err)
	}
	return &Execution{Output: string(data), Type: stepType}, nil
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
