// Package generate produces answers from packed excerpts with a hosted chat model.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/bedrock"
	"github.com/hyperjump/kotae/internal/models"
)

const (
	anthropicVersion = "bedrock-2023-05-31"

	systemPrompt = "You answer ONLY using the EXCERPTS provided. " +
		"If the user asks about overall contents, summarize the EXCERPTS. " +
		"If the answer is not present, say you don't know."

	// FallbackAnswer is returned when the model replies without any text.
	FallbackAnswer = "I couldn't find the answer in the indexed context."
)

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	System           string    `json:"system"`
	Messages         []message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

// Generator calls an Anthropic messages model through Bedrock.
type Generator struct {
	invoker   bedrock.Invoker
	modelID   string
	maxTokens int
}

// NewGenerator returns a generator for modelID capped at maxTokens output tokens.
func NewGenerator(invoker bedrock.Invoker, modelID string, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &Generator{invoker: invoker, modelID: modelID, maxTokens: maxTokens}
}

// Prompt formats the single user turn sent to the model.
func Prompt(question, excerpts string) string {
	return "Question:\n" + question + "\n\nEXCERPTS:\n" + excerpts
}

// Answer asks the model to answer question from excerpts. Sampling is deterministic.
func (g *Generator) Answer(ctx context.Context, question, excerpts string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		AnthropicVersion: anthropicVersion,
		System:           systemPrompt,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: Prompt(question, excerpts)}},
		}},
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}
	raw, err := g.invoker.Invoke(ctx, g.modelID, body)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	var resp messagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode completion: %v", models.ErrInvalidResponse, err)
	}
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		if text := strings.TrimSpace(block.Text); text != "" {
			return text, nil
		}
	}
	return FallbackAnswer, nil
}
