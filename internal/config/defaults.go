package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		if cfg.Storage.Bucket != "" {
			cfg.Storage.Backend = "s3"
		} else {
			cfg.Storage.Backend = "disk"
		}
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "/usr/local/var/kotae/data/objects"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/objects.db"
	}
	if cfg.Storage.DocsPrefix == "" {
		cfg.Storage.DocsPrefix = "docs/"
	}
	if cfg.Storage.IndexPrefix == "" {
		cfg.Storage.IndexPrefix = "indexes/latest/"
	}
	if cfg.Models.Region == "" {
		cfg.Models.Region = "ap-southeast-2"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = cfg.Models.Region
	}
	if cfg.Models.EmbedModelID == "" {
		cfg.Models.EmbedModelID = "amazon.titan-embed-text-v2:0"
	}
	if cfg.Models.ChatModelID == "" {
		cfg.Models.ChatModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Models.EmbedDim == 0 {
		cfg.Models.EmbedDim = 1024
	}
	if cfg.Models.MaxTokens == 0 {
		cfg.Models.MaxTokens = 400
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 500
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 50
	}
	if cfg.Index.PreviewChars == 0 {
		cfg.Index.PreviewChars = 300
	}
	if cfg.Index.Extensions == nil {
		cfg.Index.Extensions = []string{".txt"}
	}
	if cfg.Index.Concurrency == 0 {
		cfg.Index.Concurrency = 4
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 8
	}
	if cfg.Query.MaxDocs == 0 {
		cfg.Query.MaxDocs = 3
	}
	if cfg.Query.ContextChars == 0 {
		cfg.Query.ContextChars = 1800
	}
	if cfg.Query.EmbedCacheSize == 0 {
		cfg.Query.EmbedCacheSize = 1000
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 400 * time.Millisecond
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 4 * time.Second
	}
	if cfg.Retry.Jitter == 0 {
		cfg.Retry.Jitter = 200 * time.Millisecond
	}
}
