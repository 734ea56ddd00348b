package reranker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/llm"
)

// scoreByContent maps a substring of the judged passage to a score.
func scoreByContent(scores map[string]float64) *fakeProvider {
	return &fakeProvider{fn: func(req llm.Request) (*llm.Response, error) {
		prompt := req.Messages[len(req.Messages)-1].Content
		for needle, score := range scores {
			if strings.Contains(prompt, needle) {
				return &llm.Response{Content: fmt.Sprintf(`{"score": %g, "reason": "judged"}`, score)}, nil
			}
		}
		return nil, errors.New("no canned score for prompt")
	}}
}

func TestLLMPointwise_OrdersByJudgedScore(t *testing.T) {
	provider := scoreByContent(map[string]float64{
		"cache eviction policy":  0.4,
		"connection pooling":     0.1,
		"under memory pressure":  0.9,
	})
	r, err := NewLLMPointwise(provider, nil)
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "when is the cache evicted", testChunks(), 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "c3", results[0].ChunkID)
	assert.InDelta(t, 0.9, results[0].RerankedScore, 1e-9)
	assert.Equal(t, "judged", results[0].Reasoning)
	assert.Equal(t, int64(3), provider.calls.Load())
}

func TestLLMPointwise_ItemFailureKeepsRetrievalScore(t *testing.T) {
	// Only c3 gets judged; the others fall back to normalized fused scores.
	provider := scoreByContent(map[string]float64{"under memory pressure": 0.95})
	r, err := NewLLMPointwise(provider, nil)
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "query", testChunks(), 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byID := map[string]Result{}
	for _, res := range results {
		byID[res.ChunkID] = res
	}
	assert.InDelta(t, 0.95, byID["c3"].RerankedScore, 1e-9)
	// c1 holds the pool-max fused score, normalized to 1.0.
	assert.InDelta(t, 1.0, byID["c1"].RerankedScore, 1e-9)
	assert.Empty(t, byID["c1"].Reasoning)
}

func TestLLMPointwise_ClampsScores(t *testing.T) {
	provider := &fakeProvider{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: `{"score": 7.5, "reason": "overexcited"}`}, nil
	}}
	r, err := NewLLMPointwise(provider, nil)
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "query", testChunks()[:1], 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].RerankedScore, 1e-9)
}

func TestLLMPointwise_LenientJSON(t *testing.T) {
	provider := &fakeProvider{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "Sure, here you go:\n```json\n{\"score\": 0.5, \"reason\": \"ok\"}\n```"}, nil
	}}
	r, err := NewLLMPointwise(provider, nil)
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "query", testChunks()[:1], 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, results[0].RerankedScore, 1e-9)
}

func TestNewLLMPointwise_RequiresProvider(t *testing.T) {
	_, err := NewLLMPointwise(nil, nil)
	assert.ErrorIs(t, err, ErrProviderRequired)
}
