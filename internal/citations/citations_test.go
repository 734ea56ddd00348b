package citations

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssign_StableNumbers(t *testing.T) {
	m := NewManager()

	assert.Equal(t, 1, m.Assign("c1", "Doc One"))
	assert.Equal(t, 2, m.Assign("c2", "Doc Two"))
	// Re-citing returns the original number.
	assert.Equal(t, 1, m.Assign("c1", "Doc One"))
	assert.Equal(t, 3, m.Assign("c3", "Doc One"))
}

func TestAssign_FirstTitleWins(t *testing.T) {
	m := NewManager()

	m.Assign("c1", "Original Title")
	m.Assign("c1", "Renamed Title")

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Original Title", list[0].DocumentTitle)
}

func TestList_OrderedByNumber(t *testing.T) {
	m := NewManager()
	m.Assign("c3", "C")
	m.Assign("c1", "A")
	m.Assign("c2", "B")

	list := m.List()
	require.Len(t, list, 3)
	for i, c := range list {
		assert.Equal(t, i+1, c.Number)
	}
	assert.Equal(t, "c3", list[0].ChunkID)
}

func TestClear_RestartsNumbering(t *testing.T) {
	m := NewManager()
	m.Assign("c1", "Doc")
	m.Assign("c2", "Doc")

	m.Clear()
	assert.Zero(t, m.Len())
	assert.Equal(t, 1, m.Assign("c9", "Doc"))
}

func TestAssign_Concurrent(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Half the goroutines share a chunk id.
			m.Assign(fmt.Sprintf("c%d", i%25), "Doc")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, m.Len())
	seen := map[int]bool{}
	for _, c := range m.List() {
		assert.False(t, seen[c.Number], "duplicate citation number %d", c.Number)
		seen[c.Number] = true
		assert.GreaterOrEqual(t, c.Number, 1)
		assert.LessOrEqual(t, c.Number, 25)
	}
}
