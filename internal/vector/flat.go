package vector

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
)

// FlatIndex is an exact brute-force inner-product index held in memory.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Add appends vectors; the first gets row Size() before the call.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dimensions {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), f.dimensions)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		f.vectors = append(f.vectors, slices.Clone(v))
	}
	return nil
}

// Search returns exactly k results ordered by descending inner product, ties
// broken by lower row first. When k exceeds Size the tail is padded with NoRow.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	f.mu.RLock()
	scored := make([]Result, len(f.vectors))
	for i, vec := range f.vectors {
		scored[i] = Result{Row: i, Score: InnerProduct(query, vec)}
	}
	f.mu.RUnlock()

	slices.SortStableFunc(scored, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	out := make([]Result, k)
	for i := range out {
		if i < len(scored) {
			out[i] = scored[i]
		} else {
			out[i] = Result{Row: NoRow, Score: math.Inf(-1)}
		}
	}
	return out, nil
}

// Vector returns a copy of the vector at row.
func (f *FlatIndex) Vector(row int) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if row < 0 || row >= len(f.vectors) {
		return nil, false
	}
	return slices.Clone(f.vectors[row]), true
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}
