package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestEmbeddingCache_GetRefreshesRecency(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a")
	c.Set("c", []float32{3}) // evicts b, not a
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain after being read")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d", c.Len())
	}
}

func TestCachedEmbedder_ServesRepeatsFromCache(t *testing.T) {
	inner := NewMockEmbedder(8)
	e := NewCachedEmbedder(inner, 4)
	ctx := context.Background()
	first, err := e.Embed(ctx, "what is the refund policy?")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Embed(ctx, "what is the refund policy?")
	if err != nil {
		t.Fatal(err)
	}
	if inner.Calls() != 1 {
		t.Errorf("inner embedder called %d times, want 1", inner.Calls())
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Error("cached vector differs from computed vector")
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
}
