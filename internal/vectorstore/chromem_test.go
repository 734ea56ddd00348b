package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known texts to fixed unit vectors so similarity
// ordering is deterministic without a model.
type fakeEmbedder struct {
	vectors map[string][]float32
	def     []float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: map[string][]float32{},
		def:     []float32{0, 0, 1},
	}
}

func (f *fakeEmbedder) set(text string, vec []float32) {
	f.vectors[text] = vec
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.def
		}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func newTestStore(t *testing.T) (*ChromemStore, *fakeEmbedder) {
	t.Helper()
	emb := newFakeEmbedder()
	store, err := NewChromemStore(ChromemConfig{}, emb, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, emb
}

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_AddDocuments(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ids, err := store.AddDocuments(ctx, []Document{
		{ID: "c1", Content: "alpha"},
		{ID: "c2", Content: "beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestChromemStore_AddDocuments_Empty(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestChromemStore_AddDocuments_MissingID(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.AddDocuments(context.Background(), []Document{{Content: "no id"}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_Query_EmptyStore(t *testing.T) {
	store, _ := newTestStore(t)

	results, err := store.Query(context.Background(), []float32{0, 0, 1}, 5, false)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_Query_Ordering(t *testing.T) {
	store, emb := newTestStore(t)
	ctx := context.Background()

	emb.set("cats purr", []float32{1, 0, 0})
	emb.set("dogs bark", []float32{0.6, 0.8, 0})
	emb.set("stocks fell", []float32{0, 0, 1})

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "c1", Content: "cats purr", Metadata: map[string]string{MetaDocumentID: "d1"}},
		{ID: "c2", Content: "dogs bark", Metadata: map[string]string{MetaDocumentID: "d1"}},
		{ID: "c3", Content: "stocks fell", Metadata: map[string]string{MetaDocumentID: "d2"}},
	})
	require.NoError(t, err)

	results, err := store.Query(ctx, []float32{1, 0, 0}, 2, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "c2", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "d1", results[0].Metadata[MetaDocumentID])
}

func TestChromemStore_Query_ClampsK(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{{ID: "c1", Content: "only one"}})
	require.NoError(t, err)

	// k beyond the collection size must not error.
	results, err := store.Query(ctx, []float32{0, 0, 1}, 50, false)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_Query_ReadyOnly(t *testing.T) {
	store, emb := newTestStore(t)
	ctx := context.Background()

	emb.set("ready chunk", []float32{1, 0, 0})
	emb.set("pending chunk", []float32{0.9, 0.1, 0})

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "c1", Content: "ready chunk", Metadata: map[string]string{MetaReady: "true"}},
		{ID: "c2", Content: "pending chunk", Metadata: map[string]string{MetaReady: "false"}},
	})
	require.NoError(t, err)

	results, err := store.Query(ctx, []float32{1, 0, 0}, 1, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}

func TestChromemStore_Query_InvalidK(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Query(context.Background(), []float32{0, 0, 1}, 0, false)
	assert.Error(t, err)
}

func TestChromemStore_DeleteDocuments(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "c1", Content: "alpha"},
		{ID: "c2", Content: "beta"},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocuments(ctx, []string{"c1"}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Deleting nothing is fine.
	require.NoError(t, store.DeleteDocuments(ctx, nil))
}

func TestChromemStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	emb := newFakeEmbedder()

	store, err := NewChromemStore(ChromemConfig{Path: dir}, emb, nil)
	require.NoError(t, err)
	_, err = store.AddDocuments(context.Background(), []Document{{ID: "c1", Content: "persisted"}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewChromemStore(ChromemConfig{Path: dir}, emb, nil)
	require.NoError(t, err)
	count, err := reopened.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
