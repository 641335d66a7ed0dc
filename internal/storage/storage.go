// Package storage defines the object store that holds source documents and index artifacts.
package storage

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object. Fingerprint changes whenever the content does.
type ObjectInfo struct {
	Key         string
	Size        int64
	Fingerprint string
	ModTime     time.Time
}

// ObjectStore is a flat key/blob namespace with prefix listing.
type ObjectStore interface {
	// List returns objects whose key starts with prefix, in key order.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// GetRange returns up to length bytes starting at offset.
	GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// URI returns the canonical location of key, used for citations.
	URI(key string) string
	Close() error
}

// GuessMime returns the content type for key's extension, defaulting to text/plain.
func GuessMime(key string) string {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".txt", "":
		return "text/plain"
	case ".md":
		return "text/markdown"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	return "text/plain"
}

// Join appends name to prefix with exactly one slash between them.
func Join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(name, "/")
}
