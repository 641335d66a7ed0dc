package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/bedrock"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/retry"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Store     storage.ObjectStore
	Metrics   *metrics.Metrics
	Loader    *artifact.Loader
	Reindexer *artifact.Reindexer
	Engine    *search.Engine
}

// Close releases the object store.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func openStore(ctx context.Context, cfg *config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3StoreFromRegion(ctx, cfg.Region, cfg.Bucket)
	case "sqlite":
		return storage.NewSQLiteStore(cfg.DatabasePath)
	case "disk":
		return storage.NewDiskStore(cfg.Root)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func retryPolicy(cfg *config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Jitter:      cfg.Jitter,
	}
}

// newInvoker connects to the Bedrock runtime for the configured region.
func newInvoker(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (bedrock.Invoker, error) {
	return bedrock.NewFromRegion(ctx, cfg.Models.Region,
		bedrock.WithPolicy(retryPolicy(&cfg.Retry)),
		bedrock.WithLogger(logger),
		bedrock.WithMetrics(m),
	)
}

// initializeComponents wires the pipeline over store and invoker.
func initializeComponents(cfg *config.Config, store storage.ObjectStore, invoker bedrock.Invoker, logger *zap.Logger, m *metrics.Metrics) (*Components, error) {
	chunker, err := indexer.NewChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewTitanEmbedder(invoker, cfg.Models.EmbedModelID, cfg.Models.EmbedDim)

	builder := indexer.NewBuilder(store, embedder, chunker, extract.NewExtractor(), cfg.Storage.DocsPrefix,
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Index.Extensions),
		indexer.WithConcurrency(cfg.Index.Concurrency),
		indexer.WithPreviewChars(cfg.Index.PreviewChars),
	)
	publisher := artifact.NewPublisher(store, cfg.Storage.IndexPrefix, logger)
	loader := artifact.NewLoader(store, cfg.Storage.IndexPrefix,
		artifact.WithLogger(logger),
		artifact.WithMetrics(m),
	)

	engine := search.NewEngine(
		loader,
		embedding.NewCachedEmbedder(embedder, cfg.Query.EmbedCacheSize),
		search.NewPacker(store, cfg.Index.PreviewChars, logger),
		generate.NewGenerator(invoker, cfg.Models.ChatModelID, cfg.Models.MaxTokens),
		&cfg.Query,
		search.WithLogger(logger),
		search.WithMetrics(m),
		search.WithContextLogging(cfg.DebugLogContext),
	)
	return &Components{
		Store:     store,
		Metrics:   m,
		Loader:    loader,
		Reindexer: artifact.NewReindexer(builder, publisher, logger, m),
		Engine:    engine,
	}, nil
}

// connect opens the store and the model client and wires everything.
func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := openStore(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	m := metrics.New()
	invoker, err := newInvoker(ctx, cfg, logger, m)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	c, err := initializeComponents(cfg, store, invoker, logger, m)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return c, nil
}
