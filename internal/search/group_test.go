package search

import (
	"testing"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scores(g models.DocumentGroup) []float64 {
	var out []float64
	for _, h := range g.Hits {
		out = append(out, h.Score)
	}
	return out
}

func TestGroup_CapsChunksAndRanksDocuments(t *testing.T) {
	hits := []models.Hit{hit("A", 0.9), hit("B", 0.8), hit("A", 0.7), hit("A", 0.5), hit("A", 0.3)}

	groups := Group(hits, 1)
	require.Len(t, groups, 1)
	assert.Equal(t, "A", groups[0].DocID)
	assert.Equal(t, 0.9, groups[0].Score)
	assert.Equal(t, []float64{0.9, 0.7, 0.5}, scores(groups[0]))

	groups = Group(hits, 5)
	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[1].DocID)
	assert.Equal(t, []float64{0.8}, scores(groups[1]))
}

func TestGroup_ResortsUnorderedHits(t *testing.T) {
	groups := Group([]models.Hit{hit("A", 0.2), hit("B", 0.5), hit("A", 0.6)}, 3)
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].DocID)
	assert.Equal(t, []float64{0.6, 0.2}, scores(groups[0]))
}

func TestGroup_TiesKeepRetrievalOrder(t *testing.T) {
	first := hit("A", 0.5)
	first.Chunk.ChunkID = "first"
	second := hit("A", 0.5)
	second.Chunk.ChunkID = "second"
	groups := Group([]models.Hit{hit("C", 0.5), first, second, hit("B", 0.5)}, 3)
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{groups[0].DocID, groups[1].DocID, groups[2].DocID})
	assert.Equal(t, "first", groups[1].Hits[0].Chunk.ChunkID)
	assert.Equal(t, "second", groups[1].Hits[1].Chunk.ChunkID)
}

func TestGroup_Empty(t *testing.T) {
	assert.Empty(t, Group(nil, 3))
	assert.Empty(t, Group([]models.Hit{hit("A", 1)}, 0))
}
