// Package search answers questions: retrieve chunks, group them by document,
// pack an excerpt context and hand it to the generator.
package search

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// Retriever runs filtered top-k searches against a snapshot.
type Retriever struct{}

// Search returns up to k hits, best first. k is clamped to [1, len(snapshot.Meta)].
// Filters apply after the search, so fewer than k hits may come back.
func (Retriever) Search(ctx context.Context, snap *artifact.Snapshot, query []float32, k int, filters *models.QueryFilters) ([]models.Hit, error) {
	if snap == nil || len(snap.Meta) == 0 {
		return nil, nil
	}
	k = max(1, min(k, len(snap.Meta)))
	results, err := snap.Index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	match := newFilter(filters)
	hits := make([]models.Hit, 0, len(results))
	for _, r := range results {
		if r.Row == vector.NoRow || r.Row >= len(snap.Meta) {
			continue
		}
		rec := &snap.Meta[r.Row]
		if !match(rec) {
			continue
		}
		hits = append(hits, models.Hit{Score: r.Score, Chunk: rec})
	}
	return hits, nil
}

func newFilter(f *models.QueryFilters) func(*models.ChunkRecord) bool {
	if f.Empty() {
		return func(*models.ChunkRecord) bool { return true }
	}
	docIDs := toSet(f.DocID)
	tags := toSet(f.Tags)
	mimes := toSet(f.Mime)
	return func(rec *models.ChunkRecord) bool {
		if docIDs != nil {
			if _, ok := docIDs[rec.DocID]; !ok {
				return false
			}
		}
		if tags != nil && !anyIn(rec.Tags, tags) {
			return false
		}
		if mimes != nil {
			if _, ok := mimes[rec.Mime]; !ok {
				return false
			}
		}
		return true
	}
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func anyIn(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
