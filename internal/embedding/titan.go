package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperjump/kotae/internal/bedrock"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding []float64 `json:"embedding"`
}

// TitanEmbedder calls a Titan text embedding model.
type TitanEmbedder struct {
	invoker    bedrock.Invoker
	modelID    string
	dimensions int
}

// NewTitanEmbedder returns an embedder for modelID. Replies whose length is not
// dimensions are rejected; dimensions <= 0 accepts any length.
func NewTitanEmbedder(invoker bedrock.Invoker, modelID string, dimensions int) *TitanEmbedder {
	return &TitanEmbedder{invoker: invoker, modelID: modelID, dimensions: dimensions}
}

// Embed returns the normalized embedding of text. A zero vector is returned as is.
func (e *TitanEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}
	raw, err := e.invoker.Invoke(ctx, e.modelID, body)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	var resp titanResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode embedding: %v", models.ErrInvalidResponse, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: missing embedding", models.ErrInvalidResponse)
	}
	if e.dimensions > 0 && len(resp.Embedding) != e.dimensions {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, expected %d",
			models.ErrInvalidResponse, len(resp.Embedding), e.dimensions)
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds texts one at a time, in order.
func (e *TitanEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the configured embedding dimension.
func (e *TitanEmbedder) Dimensions() int {
	return e.dimensions
}
