// Package citations assigns stable citation numbers to retrieved chunks.
//
// Numbers are 1-based and first-seen: the first chunk cited in a session
// gets [1], the second distinct chunk [2], and re-citing a chunk returns
// its original number. Numbers never shift once assigned, so answers
// synthesized at different agent steps stay mutually consistent.
package citations

import (
	"sort"
	"sync"
)

// Citation is one assigned citation entry.
type Citation struct {
	// ChunkID identifies the cited chunk.
	ChunkID string `json:"chunk_id"`

	// DocumentTitle is the human-readable source name.
	DocumentTitle string `json:"document_title"`

	// Number is the 1-based citation marker used in answers, e.g. [2].
	Number int `json:"number"`
}

// Manager tracks citation assignments for one session. Safe for
// concurrent use.
type Manager struct {
	mu      sync.Mutex
	byChunk map[string]Citation
	next    int
}

// NewManager creates an empty citation manager.
func NewManager() *Manager {
	return &Manager{
		byChunk: make(map[string]Citation),
		next:    1,
	}
}

// Assign returns the citation number for the chunk, allocating the next
// free number on first sight. The title recorded at first assignment wins;
// later calls with a different title do not rewrite it.
func (m *Manager) Assign(chunkID, documentTitle string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.byChunk[chunkID]; ok {
		return c.Number
	}
	c := Citation{ChunkID: chunkID, DocumentTitle: documentTitle, Number: m.next}
	m.byChunk[chunkID] = c
	m.next++
	return c.Number
}

// List returns all assigned citations ordered by number.
func (m *Manager) List() []Citation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Citation, 0, len(m.byChunk))
	for _, c := range m.byChunk {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Len returns the number of assigned citations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byChunk)
}

// Clear drops all assignments and restarts numbering at 1.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byChunk = make(map[string]Citation)
	m.next = 1
}
