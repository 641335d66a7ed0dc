package search

import (
	"cmp"
	"slices"

	"github.com/hyperjump/kotae/internal/models"
)

// MaxChunksPerDoc caps how many hits one document contributes to the context.
const MaxChunksPerDoc = 3

// Group collects hits by document. Each group keeps its best MaxChunksPerDoc hits
// and is scored by its best hit; groups are ranked by score and cut to maxDocs.
// Ties keep retrieval order.
func Group(hits []models.Hit, maxDocs int) []models.DocumentGroup {
	if maxDocs <= 0 || len(hits) == 0 {
		return nil
	}
	var groups []models.DocumentGroup
	pos := make(map[string]int)
	for _, h := range hits {
		i, ok := pos[h.Chunk.DocID]
		if !ok {
			i = len(groups)
			pos[h.Chunk.DocID] = i
			groups = append(groups, models.DocumentGroup{DocID: h.Chunk.DocID})
		}
		groups[i].Hits = append(groups[i].Hits, h)
	}
	byScore := func(a, b float64) int { return cmp.Compare(b, a) }
	for i := range groups {
		slices.SortStableFunc(groups[i].Hits, func(a, b models.Hit) int { return byScore(a.Score, b.Score) })
		if len(groups[i].Hits) > MaxChunksPerDoc {
			groups[i].Hits = groups[i].Hits[:MaxChunksPerDoc]
		}
		groups[i].Score = groups[i].Hits[0].Score
	}
	slices.SortStableFunc(groups, func(a, b models.DocumentGroup) int { return byScore(a.Score, b.Score) })
	if len(groups) > maxDocs {
		groups = groups[:maxDocs]
	}
	return groups
}
