package indexer

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Build is an index and its metadata, row-aligned: Records[i] describes vector i.
type Build struct {
	ID      string
	Index   *vector.FlatIndex
	Records []models.ChunkRecord
	Docs    int
}

// Builder reads every eligible document under a prefix and produces a Build.
type Builder struct {
	store        storage.ObjectStore
	embedder     embedding.Embedder
	chunker      *Chunker
	extractor    *extract.Extractor
	docsPrefix   string
	extensions   []string
	previewChars int
	concurrency  int
	logger       *zap.Logger
	newID        func() string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for debug output (documents skipped, indexed, etc.).
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithExtensions sets the allowed document extensions. Default is .txt only.
func WithExtensions(exts []string) BuilderOption {
	return func(b *Builder) { b.extensions = exts }
}

// WithConcurrency bounds the number of embedding calls in flight.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithPreviewChars sets how many characters of each chunk are kept as its preview.
func WithPreviewChars(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.previewChars = n
		}
	}
}

// WithIDFunc replaces the document id generator.
func WithIDFunc(fn func() string) BuilderOption {
	return func(b *Builder) { b.newID = fn }
}

// NewBuilder creates a builder reading documents under docsPrefix.
// extractor may be nil; then only plain text formats are read.
func NewBuilder(
	store storage.ObjectStore,
	embedder embedding.Embedder,
	chunker *Chunker,
	extractor *extract.Extractor,
	docsPrefix string,
	opts ...BuilderOption,
) *Builder {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	b := &Builder{
		store:        store,
		embedder:     embedder,
		chunker:      chunker,
		extractor:    extractor,
		docsPrefix:   docsPrefix,
		extensions:   []string{".txt"},
		previewChars: 300,
		concurrency:  4,
		logger:       zap.NewNop(),
		newID:        func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type pendingChunk struct {
	text   string
	record models.ChunkRecord
}

// Build enumerates documents, chunks and embeds them, and returns the assembled
// index. Rows follow document listing order, then chunk order. Returns
// models.ErrNoDocuments when no document yields a chunk.
func (b *Builder) Build(ctx context.Context) (*Build, error) {
	objects, err := b.store.List(ctx, b.docsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var pending []pendingChunk
	docs := 0
	for _, obj := range objects {
		doc, ok, err := b.readDocument(ctx, obj)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		docID := b.newID()
		n := 0
		for offset, window := range b.chunker.Spans(doc.Text) {
			pending = append(pending, pendingChunk{
				text: window,
				record: models.ChunkRecord{
					DocID:      docID,
					ChunkID:    fmt.Sprintf("%s_%d", docID, n),
					Title:      doc.Title,
					SourceURI:  doc.SourceURI,
					SourceKey:  doc.Key,
					Mime:       doc.Mime,
					Tags:       doc.Tags,
					UploadedAt: doc.UploadedAt,
					Offset:     offset,
					Preview:    utils.Prefix(window, b.previewChars),
				},
			})
			n++
		}
		docs++
		b.logger.Debug("builder document chunked",
			zap.String("key", doc.Key), zap.String("doc_id", docID), zap.Int("chunks", n))
	}
	if len(pending) == 0 {
		return nil, models.ErrNoDocuments
	}

	vectors, err := b.embedAll(ctx, pending)
	if err != nil {
		return nil, err
	}
	idx, err := vector.NewFlatIndex(b.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	if err := idx.Add(ctx, vectors); err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}
	records := make([]models.ChunkRecord, len(pending))
	for i, p := range pending {
		records[i] = p.record
		records[i].Ordinal = i
	}
	return &Build{ID: uuid.New().String(), Index: idx, Records: records, Docs: docs}, nil
}

// embedAll embeds chunks with bounded concurrency; vectors land at their chunk's position.
func (b *Builder) embedAll(ctx context.Context, pending []pendingChunk) ([][]float32, error) {
	vectors := make([][]float32, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range pending {
		g.Go(func() error {
			vec, err := b.embedder.Embed(gctx, pending[i].text)
			if err != nil {
				return fmt.Errorf("embed %s: %w", pending[i].record.ChunkID, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// readDocument returns the extracted document, or ok=false when it should be skipped.
func (b *Builder) readDocument(ctx context.Context, obj storage.ObjectInfo) (models.SourceDocument, bool, error) {
	ext := strings.ToLower(path.Ext(obj.Key))
	if !extensionAllowed(ext, b.extensions) || !b.extractor.Supported(ext) {
		b.logger.Debug("builder skipping document", zap.String("key", obj.Key), zap.String("reason", "extension"))
		return models.SourceDocument{}, false, nil
	}
	raw, err := b.store.Get(ctx, obj.Key)
	if err != nil {
		return models.SourceDocument{}, false, fmt.Errorf("read %s: %w", obj.Key, err)
	}
	text, err := b.extractor.ExtractBytes(raw, ext)
	if err != nil {
		b.logger.Warn("builder extraction failed", zap.String("key", obj.Key), zap.Error(err))
		return models.SourceDocument{}, false, nil
	}
	if strings.TrimSpace(text) == "" {
		b.logger.Debug("builder skipping document", zap.String("key", obj.Key), zap.String("reason", "empty"))
		return models.SourceDocument{}, false, nil
	}
	modTime := obj.ModTime
	if modTime.IsZero() {
		modTime = time.Now()
	}
	return models.SourceDocument{
		Key:        obj.Key,
		Title:      path.Base(obj.Key),
		SourceURI:  b.store.URI(obj.Key),
		Mime:       storage.GuessMime(obj.Key),
		Tags:       tagsFor(obj.Key, b.docsPrefix),
		UploadedAt: modTime.UTC().Format(time.RFC3339),
		Text:       text,
	}, true, nil
}

// tagsFor returns the folder names between the docs prefix and the file name,
// so docs/hr/policies/leave.txt is tagged [hr policies].
func tagsFor(key, prefix string) []string {
	rel := strings.TrimPrefix(key, prefix)
	dir := path.Dir(rel)
	if dir == "." || dir == "/" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
