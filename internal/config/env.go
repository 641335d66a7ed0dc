package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables. Unset variables leave
// the current value alone.
func ApplyEnv(cfg *Config) error {
	str := map[string]*string{
		"STORAGE_BACKEND": &cfg.Storage.Backend,
		"S3_BUCKET":       &cfg.Storage.Bucket,
		"STORAGE_ROOT":    &cfg.Storage.Root,
		"DATABASE_PATH":   &cfg.Storage.DatabasePath,
		"DOCS_PREFIX":     &cfg.Storage.DocsPrefix,
		"INDEX_PREFIX":    &cfg.Storage.IndexPrefix,
		"BEDROCK_REGION":  &cfg.Models.Region,
		"EMBED_MODEL_ID":  &cfg.Models.EmbedModelID,
		"CHAT_MODEL_ID":   &cfg.Models.ChatModelID,
		"HOST":            &cfg.Server.Host,
	}
	for name, dst := range str {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"PORT":          &cfg.Server.Port,
		"EMBED_DIM":     &cfg.Models.EmbedDim,
		"MAX_TOKENS":    &cfg.Models.MaxTokens,
		"TOP_K":         &cfg.Query.TopK,
		"MAX_DOCS":      &cfg.Query.MaxDocs,
		"CONTEXT_CHARS": &cfg.Query.ContextChars,
		"CHUNK_SIZE":    &cfg.Index.ChunkSize,
		"CHUNK_OVERLAP": &cfg.Index.ChunkOverlap,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", name, v, err)
		}
		*dst = n
	}
	if v, ok := os.LookupEnv("DEBUG_LOG_CONTEXT"); ok {
		cfg.DebugLogContext = truthy(v)
	}
	if v, ok := os.LookupEnv("DEBUG"); ok {
		cfg.Debug = truthy(v)
	}
	return nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
