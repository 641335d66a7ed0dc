package search

import (
	"context"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetriever_RanksAndClampsK(t *testing.T) {
	snap := snapshotOf(t,
		row{doc: "a", vec: []float32{0, 1}},
		row{doc: "b", vec: []float32{1, 0}},
		row{doc: "c", vec: []float32{0.8, 0.6}},
	)
	ctx := context.Background()
	hits, err := Retriever{}.Search(ctx, snap, []float32{1, 0}, 100, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3, "k above the index size returns every row and no padding")
	assert.Equal(t, []string{"b", "c", "a"}, []string{hits[0].Chunk.DocID, hits[1].Chunk.DocID, hits[2].Chunk.DocID})
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	hits, err = Retriever{}.Search(ctx, snap, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1, "k below one is raised to one")
	assert.Equal(t, "b", hits[0].Chunk.DocID)
}

func TestRetriever_EmptySnapshot(t *testing.T) {
	hits, err := Retriever{}.Search(context.Background(), snapshotOf(t), []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetriever_Filters(t *testing.T) {
	snap := snapshotOf(t,
		row{doc: "d1", tags: []string{"a", "b"}, vec: []float32{1, 0}},
		row{doc: "d2", tags: []string{"c"}, mime: "application/pdf", vec: []float32{0.8, 0.6}},
		row{doc: "d3", vec: []float32{0.6, 0.8}},
	)
	docs := func(hits []models.Hit) []string {
		var out []string
		for _, h := range hits {
			out = append(out, h.Chunk.DocID)
		}
		return out
	}
	tests := []struct {
		name    string
		filters *models.QueryFilters
		want    []string
	}{
		{"none", nil, []string{"d1", "d2", "d3"}},
		{"empty", &models.QueryFilters{Tags: []string{}}, []string{"d1", "d2", "d3"}},
		{"tag excludes disjoint", &models.QueryFilters{Tags: []string{"c"}}, []string{"d2"}},
		{"tag intersection", &models.QueryFilters{Tags: []string{"b", "z"}}, []string{"d1"}},
		{"doc id", &models.QueryFilters{DocID: []string{"d3", "d1"}}, []string{"d1", "d3"}},
		{"mime", &models.QueryFilters{Mime: []string{"application/pdf"}}, []string{"d2"}},
		{"conjunction", &models.QueryFilters{DocID: []string{"d1"}, Tags: []string{"c"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := Retriever{}.Search(context.Background(), snap, []float32{1, 0}, 3, tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, docs(hits))
		})
	}
}

func TestRetriever_DimensionMismatch(t *testing.T) {
	snap := snapshotOf(t, row{doc: "a", vec: []float32{1, 0}})
	_, err := Retriever{}.Search(context.Background(), snap, []float32{1, 0, 0}, 1, nil)
	assert.Error(t, err)
}
