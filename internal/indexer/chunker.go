// Package indexer chunks and embeds source documents into a vector index build.
package indexer

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
)

// Chunker splits text into overlapping fixed-size character windows.
// Sizes count runes, not bytes.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with window size and overlap in characters.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Step is the distance between the starts of consecutive windows.
func (c *Chunker) Step() int {
	return c.size - c.overlap
}

// Windows yields the windows of text after trimming surrounding whitespace.
// Window i starts at rune i*Step(). Blank text yields nothing. The sequence
// can be ranged over more than once.
func (c *Chunker) Windows(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, w := range c.Spans(text) {
			if !yield(w) {
				return
			}
		}
	}
}

// Spans yields the same windows as Windows, each with the byte offset at
// which it starts in the untrimmed text.
func (c *Chunker) Spans(text string) iter.Seq2[int, string] {
	lead := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	trimmed := strings.TrimSpace(text)
	starts := make([]int, 0, len(trimmed))
	for i := range trimmed {
		starts = append(starts, i)
	}
	starts = append(starts, len(trimmed))
	n := len(starts) - 1
	return func(yield func(int, string) bool) {
		for start := 0; start < n; start += c.Step() {
			end := min(start+c.size, n)
			if !yield(lead+starts[start], trimmed[starts[start]:starts[end]]) {
				return
			}
			if end == n {
				return
			}
		}
	}
}

// Count returns how many windows text produces.
func (c *Chunker) Count(text string) int {
	n := len([]rune(strings.TrimSpace(text)))
	if n == 0 {
		return 0
	}
	if n <= c.size {
		return 1
	}
	return (n - c.overlap + c.Step() - 1) / c.Step()
}
