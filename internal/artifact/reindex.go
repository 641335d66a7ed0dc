package artifact

import (
	"context"
	"errors"
	"sync"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// BuildSource produces a complete build.
type BuildSource interface {
	Build(ctx context.Context) (*indexer.Build, error)
}

// Reindexer builds and publishes under one lock, so runs from the API, the CLI
// and the watcher never interleave their writes.
type Reindexer struct {
	mu        sync.Mutex
	source    BuildSource
	publisher *Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewReindexer creates a reindexer. m may be nil.
func NewReindexer(source BuildSource, publisher *Publisher, logger *zap.Logger, m *metrics.Metrics) *Reindexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reindexer{source: source, publisher: publisher, logger: logger, metrics: m}
}

// Run rebuilds the index from the documents and publishes it. A build with
// nothing to index is reported as OK with msg "no docs" and publishes nothing.
func (r *Reindexer) Run(ctx context.Context) (*models.IndexResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	build, err := r.source.Build(ctx)
	if errors.Is(err, models.ErrNoDocuments) {
		r.count("empty")
		r.logger.Info("nothing to index")
		return &models.IndexResult{OK: true, Msg: "no docs"}, nil
	}
	if err != nil {
		r.count("error")
		return nil, err
	}
	if err := r.publisher.Publish(ctx, build); err != nil {
		r.count("error")
		return nil, err
	}
	r.count("published")
	return &models.IndexResult{OK: true, Count: len(build.Records), Docs: build.Docs, BuildID: build.ID}, nil
}

func (r *Reindexer) count(result string) {
	if r.metrics != nil {
		r.metrics.IndexBuilds.WithLabelValues(result).Inc()
	}
}
