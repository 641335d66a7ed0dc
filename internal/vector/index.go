// Package vector provides a flat inner-product index addressed by row number.
package vector

import "context"

// Index stores vectors in insertion order and answers top-k inner-product queries.
// Rows are dense from 0; the row number is the only identity a vector has.
type Index interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Size() int
	Dimensions() int
}

// NoRow marks a padding slot in search results when k exceeds the index size.
const NoRow = -1

// Result is a single search hit. Row is NoRow for padding slots.
type Result struct {
	Row   int
	Score float64 // inner product; cosine similarity for unit vectors
}
