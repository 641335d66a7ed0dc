package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// liveReadBytes is how much of the source is fetched when a chunk has no preview.
const liveReadBytes = 2048

// Packer renders document groups into the excerpt block given to the generator.
type Packer struct {
	store        storage.ObjectStore
	previewChars int
	logger       *zap.Logger
}

// NewPacker creates a packer. store may be nil, which disables live excerpts.
func NewPacker(store storage.ObjectStore, previewChars int, logger *zap.Logger) *Packer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if previewChars <= 0 {
		previewChars = 300
	}
	return &Packer{store: store, previewChars: previewChars, logger: logger}
}

// Pack writes a "[title] (uri)" header per group followed by "- excerpt" lines.
// Each line costs its length plus one for the newline; packing stops at the first
// line that would exceed maxChars.
func (p *Packer) Pack(ctx context.Context, groups []models.DocumentGroup, maxChars int) string {
	var lines []string
	used := 0
	emit := func(line string) bool {
		cost := utf8.RuneCountInString(line) + 1
		if used+cost > maxChars {
			return false
		}
		lines = append(lines, line)
		used += cost
		return true
	}
	for _, g := range groups {
		if len(g.Hits) == 0 {
			continue
		}
		first := g.Hits[0].Chunk
		title := first.Title
		if title == "" {
			title = "Untitled"
		}
		if !emit("[" + title + "] (" + first.SourceURI + ")") {
			break
		}
		for _, h := range g.Hits {
			text := p.excerpt(ctx, h.Chunk)
			if text == "" {
				continue
			}
			if !emit("- " + text) {
				return strings.Join(lines, "\n")
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (p *Packer) excerpt(ctx context.Context, rec *models.ChunkRecord) string {
	if rec.Preview != "" {
		return rec.Preview
	}
	if p.store == nil || rec.SourceKey == "" || !strings.HasPrefix(rec.Mime, "text/") {
		return ""
	}
	raw, err := p.store.GetRange(ctx, rec.SourceKey, int64(rec.Offset), liveReadBytes)
	if err != nil {
		p.logger.Warn("live excerpt read failed", zap.String("chunk_id", rec.ChunkID), zap.Error(err))
		return ""
	}
	text := utils.CollapseWhitespace(strings.ToValidUTF8(string(raw), ""))
	return utils.Prefix(text, p.previewChars)
}
