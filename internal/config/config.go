// Package config provides configuration loading and structs for kotae.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug           bool          `yaml:"debug"`
	DebugLogContext bool          `yaml:"debug_log_context"`
	Server          ServerConfig  `yaml:"server"`
	Storage         StorageConfig `yaml:"storage"`
	Models          ModelsConfig  `yaml:"models"`
	Index           IndexConfig   `yaml:"index"`
	Query           QueryConfig   `yaml:"query"`
	Retry           RetryConfig   `yaml:"retry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the object store and the key prefixes inside it.
type StorageConfig struct {
	Backend      string `yaml:"backend"` // s3, disk, or sqlite
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Root         string `yaml:"root"`
	DatabasePath string `yaml:"database_path"`
	DocsPrefix   string `yaml:"docs_prefix"`
	IndexPrefix  string `yaml:"index_prefix"`
}

// ModelsConfig names the hosted embedding and chat models.
type ModelsConfig struct {
	Region       string `yaml:"region"`
	EmbedModelID string `yaml:"embed_model_id"`
	ChatModelID  string `yaml:"chat_model_id"`
	EmbedDim     int    `yaml:"embed_dim"`
	MaxTokens    int    `yaml:"max_tokens"`
}

// IndexConfig holds chunking and build settings.
type IndexConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	PreviewChars int      `yaml:"preview_chars"`
	Extensions   []string `yaml:"extensions"`
	Concurrency  int      `yaml:"concurrency"`
}

// QueryConfig holds retrieval and context settings.
type QueryConfig struct {
	TopK           int `yaml:"top_k"`
	MaxDocs        int `yaml:"max_docs"`
	ContextChars   int `yaml:"context_chars"`
	EmbedCacheSize int `yaml:"embed_cache_size"`
}

// RetryConfig configures backoff for model calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      time.Duration `yaml:"jitter"`
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, and expands paths. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Storage.Root = expandPath(cfg.Storage.Root, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
	case "disk", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q (supported: s3, disk, sqlite)", c.Storage.Backend)
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive")
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Models.EmbedDim <= 0 {
		return fmt.Errorf("models.embed_dim must be positive")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
