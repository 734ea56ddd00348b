package reranker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/llm"
)

func TestLLMListwise_SingleCallOrdersAll(t *testing.T) {
	provider := &fakeProvider{fn: func(req llm.Request) (*llm.Response, error) {
		// Passages are numbered in retrieval order: [1]=c1, [2]=c2, [3]=c3.
		return &llm.Response{Content: `[{"id": 1, "score": 0.2}, {"id": 2, "score": 0.9}, {"id": 3, "score": 0.5}]`}, nil
	}}
	r, err := NewLLMListwise(provider, nil)
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "query", testChunks(), 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "c2", results[0].ChunkID)
	assert.Equal(t, "c3", results[1].ChunkID)
	assert.Equal(t, "c1", results[2].ChunkID)
	assert.Equal(t, int64(1), provider.calls.Load())
}

func TestLLMListwise_SkippedEntriesKeepRetrievalScore(t *testing.T) {
	provider := &fakeProvider{fn: func(llm.Request) (*llm.Response, error) {
		// Model judged only passage 3; ids out of range are ignored.
		return &llm.Response{Content: `[{"id": 3, "score": 0.9}, {"id": 99, "score": 1.0}]`}, nil
	}}
	r, err := NewLLMListwise(provider, nil)
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "query", testChunks(), 0)
	require.NoError(t, err)

	byID := map[string]Result{}
	for _, res := range results {
		byID[res.ChunkID] = res
	}
	assert.InDelta(t, 0.9, byID["c3"].RerankedScore, 1e-9)
	assert.InDelta(t, 1.0, byID["c1"].RerankedScore, 1e-9)
}

func TestLLMListwise_CallFailureUsesRetrievalOrder(t *testing.T) {
	provider := &fakeProvider{fn: func(llm.Request) (*llm.Response, error) {
		return nil, errors.New("model unavailable")
	}}
	r, err := NewLLMListwise(provider, nil)
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "query", testChunks(), 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestLLMListwise_UnparseableOutputUsesRetrievalOrder(t *testing.T) {
	provider := &fakeProvider{fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "passage two seemed best to me"}, nil
	}}
	r, err := NewLLMListwise(provider, nil)
	require.NoError(t, err)

	results, err := r.Rerank(context.Background(), "query", testChunks(), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestLLMListwise_PromptNumbersPassages(t *testing.T) {
	var prompt string
	provider := &fakeProvider{fn: func(req llm.Request) (*llm.Response, error) {
		prompt = req.Messages[0].Content
		return &llm.Response{Content: `[]`}, nil
	}}
	r, err := NewLLMListwise(provider, nil)
	require.NoError(t, err)

	_, err = r.Rerank(context.Background(), "query", testChunks(), 0)
	require.NoError(t, err)
	assert.Contains(t, prompt, "[1] configuring")
	assert.Contains(t, prompt, "[3] cache eviction happens")
}

func TestNewLLMListwise_RequiresProvider(t *testing.T) {
	_, err := NewLLMListwise(nil, nil)
	assert.ErrorIs(t, err, ErrProviderRequired)
}
