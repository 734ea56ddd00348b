// Package session holds per-conversation retrieval state: the deduplicated
// set of retrieved chunks and their citation assignments.
package session

import (
	"sync"

	"github.com/fyrsmithlabs/ragd/internal/citations"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
)

// Session accumulates retrieval state across agent steps. Safe for
// concurrent use; tool calls within a step may add chunks in parallel.
type Session struct {
	// ID is the session identifier, a UUID unless the caller supplied one.
	ID string

	mu        sync.RWMutex
	chunks    []retrieval.RetrievedChunk
	seen      map[string]struct{}
	citations *citations.Manager
}

// newSession creates an empty session.
func newSession(id string) *Session {
	return &Session{
		ID:        id,
		seen:      make(map[string]struct{}),
		citations: citations.NewManager(),
	}
}

// AddChunks appends chunks not seen before, keyed by ChunkID. The first
// retrieval of a chunk wins; later duplicates are dropped regardless of
// score, so citation numbers keep pointing at the same content. Returns the
// chunks that were actually added.
func (s *Session) AddChunks(chunks []retrieval.RetrievedChunk) []retrieval.RetrievedChunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]retrieval.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if _, dup := s.seen[c.ChunkID]; dup {
			continue
		}
		s.seen[c.ChunkID] = struct{}{}
		s.chunks = append(s.chunks, c)
		added = append(added, c)
	}
	return added
}

// Chunks returns a copy of all accumulated chunks in insertion order.
func (s *Session) Chunks() []retrieval.RetrievedChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]retrieval.RetrievedChunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Len returns the number of accumulated chunks.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Cite assigns (or returns the existing) citation number for a chunk.
func (s *Session) Cite(chunkID, documentTitle string) int {
	return s.citations.Assign(chunkID, documentTitle)
}

// Citations returns all citation assignments ordered by number.
func (s *Session) Citations() []citations.Citation {
	return s.citations.List()
}

// Reset drops accumulated chunks and citations but keeps the session id.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.seen = make(map[string]struct{})
	s.citations.Clear()
}
