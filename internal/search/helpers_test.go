package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/stretchr/testify/require"
)

type row struct {
	doc  string
	tags []string
	mime string
	vec  []float32
}

func snapshotOf(t *testing.T, rows ...row) *artifact.Snapshot {
	t.Helper()
	idx, err := vector.NewFlatIndex(2)
	require.NoError(t, err)
	meta := make([]models.ChunkRecord, len(rows))
	vecs := make([][]float32, len(rows))
	for i, r := range rows {
		mime := r.mime
		if mime == "" {
			mime = "text/plain"
		}
		meta[i] = models.ChunkRecord{
			DocID:     r.doc,
			ChunkID:   fmt.Sprintf("%s_%d", r.doc, i),
			Title:     r.doc + " title",
			SourceURI: "file:///docs/" + r.doc,
			SourceKey: "docs/" + r.doc,
			Mime:      mime,
			Tags:      r.tags,
			Ordinal:   i,
			Preview:   fmt.Sprintf("chunk %d of %s", i, r.doc),
		}
		vecs[i] = r.vec
	}
	require.NoError(t, idx.Add(context.Background(), vecs))
	return &artifact.Snapshot{BuildID: "test", Index: idx, Meta: meta}
}

func hit(doc string, score float64) models.Hit {
	return models.Hit{Score: score, Chunk: &models.ChunkRecord{DocID: doc, Title: doc, Preview: fmt.Sprintf("%s@%.2f", doc, score)}}
}
