package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

func chunk(id string, score float64) retrieval.RetrievedChunk {
	return retrieval.RetrievedChunk{ChunkID: id, DocumentTitle: "Doc " + id, FusedScore: score}
}

func TestAddChunks_DedupesByChunkID(t *testing.T) {
	sess := newSession("s1")

	added := sess.AddChunks([]retrieval.RetrievedChunk{chunk("c1", 0.9), chunk("c2", 0.8)})
	assert.Len(t, added, 2)

	// Re-adding c1 with a better score still loses to the first copy.
	added = sess.AddChunks([]retrieval.RetrievedChunk{chunk("c1", 0.99), chunk("c3", 0.7)})
	require.Len(t, added, 1)
	assert.Equal(t, "c3", added[0].ChunkID)

	chunks := sess.Chunks()
	require.Len(t, chunks, 3)
	assert.InDelta(t, 0.9, chunks[0].FusedScore, 1e-9)
}

func TestChunks_ReturnsCopy(t *testing.T) {
	sess := newSession("s1")
	sess.AddChunks([]retrieval.RetrievedChunk{chunk("c1", 0.9)})

	chunks := sess.Chunks()
	chunks[0].ChunkID = "mutated"

	assert.Equal(t, "c1", sess.Chunks()[0].ChunkID)
}

func TestCite_DelegatesToManager(t *testing.T) {
	sess := newSession("s1")

	assert.Equal(t, 1, sess.Cite("c1", "Doc A"))
	assert.Equal(t, 2, sess.Cite("c2", "Doc B"))
	assert.Equal(t, 1, sess.Cite("c1", "Doc A"))

	cites := sess.Citations()
	require.Len(t, cites, 2)
	assert.Equal(t, "Doc A", cites[0].DocumentTitle)
}

func TestReset(t *testing.T) {
	sess := newSession("s1")
	sess.AddChunks([]retrieval.RetrievedChunk{chunk("c1", 0.9)})
	sess.Cite("c1", "Doc A")

	sess.Reset()

	assert.Zero(t, sess.Len())
	assert.Empty(t, sess.Citations())
	assert.Equal(t, "s1", sess.ID)
	// Dedup state is gone too.
	assert.Len(t, sess.AddChunks([]retrieval.RetrievedChunk{chunk("c1", 0.9)}), 1)
}

func TestAddChunks_Concurrent(t *testing.T) {
	sess := newSession("s1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every goroutine offers the same 10 chunks.
			batch := make([]retrieval.RetrievedChunk, 10)
			for j := range batch {
				batch[j] = chunk(fmt.Sprintf("c%d", j), 0.5)
			}
			sess.AddChunks(batch)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, sess.Len())
}

func TestStore_GetOrCreate(t *testing.T) {
	store := NewStore()

	s1 := store.GetOrCreate("fixed")
	s2 := store.GetOrCreate("fixed")
	assert.Same(t, s1, s2)

	anon := store.GetOrCreate("")
	assert.NotEmpty(t, anon.ID)
	assert.NotEqual(t, "fixed", anon.ID)
	assert.Equal(t, 2, store.Len())
}

func TestStore_GetAndDelete(t *testing.T) {
	store := NewStore()
	store.GetOrCreate("s1")

	got, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	store.Delete("s1")
	_, err = store.Get("s1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Unknown delete is a no-op.
	store.Delete("ghost")
}
