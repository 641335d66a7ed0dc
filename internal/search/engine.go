package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// NoContextAnswer is returned when retrieval finds nothing.
const NoContextAnswer = "I couldn't find relevant context."

// SnapshotLoader provides the current index snapshot.
type SnapshotLoader interface {
	EnsureLoaded(ctx context.Context) (*artifact.Snapshot, error)
}

// Generator turns a question and packed excerpts into an answer.
type Generator interface {
	Answer(ctx context.Context, question, excerpts string) (string, error)
}

// Engine answers questions against the published index.
type Engine struct {
	loader     SnapshotLoader
	embedder   embedding.Embedder
	retriever  Retriever
	packer     *Packer
	generator  Generator
	config     *config.QueryConfig
	logContext bool
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records query outcomes and latency.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithContextLogging logs a one-line preview of each packed context at debug level.
func WithContextLogging(on bool) EngineOption {
	return func(e *Engine) { e.logContext = on }
}

// NewEngine creates an engine with the given dependencies.
func NewEngine(
	loader SnapshotLoader,
	embedder embedding.Embedder,
	packer *Packer,
	generator Generator,
	cfg *config.QueryConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		loader:    loader,
		embedder:  embedder,
		packer:    packer,
		generator: generator,
		config:    cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer validates req, retrieves context for it and asks the generator.
func (e *Engine) Answer(ctx context.Context, req *models.QueryRequest) (resp *models.QueryResponse, err error) {
	start := time.Now()
	defer func() { e.observe(start, resp, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	k := req.K
	if k == 0 {
		k = e.config.TopK
	}
	snap, err := e.loader.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedder.Embed(ctx, req.Q)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := e.retriever.Search(ctx, snap, vec, k, req.Filters)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		e.logger.Debug("no hits",
			zap.String("q", utils.Truncate(req.Q, 80)),
			zap.String("build_id", snap.BuildID),
			zap.Int("k", k),
		)
		return &models.QueryResponse{Answer: NoContextAnswer, Sources: []models.Source{}}, nil
	}

	groups := Group(hits, e.config.MaxDocs)
	excerpts := e.packer.Pack(ctx, groups, e.config.ContextChars)
	if e.logContext {
		e.logger.Debug("packed context",
			zap.Int("hits", len(hits)),
			zap.Int("documents", len(groups)),
			zap.String("preview", utils.LogPreview(excerpts, 200)),
		)
	}
	answer, err := e.generator.Answer(ctx, req.Q, excerpts)
	if err != nil {
		return nil, err
	}
	return &models.QueryResponse{Answer: answer, Sources: sources(groups)}, nil
}

func sources(groups []models.DocumentGroup) []models.Source {
	out := make([]models.Source, 0, len(groups))
	for _, g := range groups {
		first := g.Hits[0].Chunk
		src := models.Source{
			DocID:     g.DocID,
			Title:     first.Title,
			SourceURI: first.SourceURI,
			Snippets:  make([]string, 0, len(g.Hits)),
		}
		for _, h := range g.Hits {
			if h.Chunk.Preview != "" {
				src.Snippets = append(src.Snippets, h.Chunk.Preview)
			}
		}
		out = append(out, src)
	}
	return out
}

func (e *Engine) observe(start time.Time, resp *models.QueryResponse, err error) {
	outcome := "answered"
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
		e.logger.Warn("query failed", zap.Error(err))
	case resp != nil && len(resp.Sources) == 0:
		outcome = "no_context"
	}
	if e.metrics != nil {
		e.metrics.Queries.WithLabelValues(outcome).Inc()
		e.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
}
