// Package artifact publishes index builds to the object store and loads them back
// as immutable snapshots.
package artifact

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// Artifact names under the index prefix.
const (
	IndexName = "index.bin"
	MetaName  = "meta.jsonl"
)

// EncodeMeta writes one JSON object per record, newline-terminated, in row order.
func EncodeMeta(records []models.ChunkRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeMeta parses newline-delimited records, preserving order. Blank lines are skipped.
func DecodeMeta(data []byte) ([]models.ChunkRecord, error) {
	var out []models.ChunkRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec models.ChunkRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Publisher writes a build's two artifacts under a prefix.
type Publisher struct {
	store  storage.ObjectStore
	prefix string
	logger *zap.Logger
}

// NewPublisher creates a publisher writing under prefix.
func NewPublisher(store storage.ObjectStore, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{store: store, prefix: prefix, logger: logger}
}

// Publish writes metadata first and the index blob last. The blob header carries
// the metadata digest, so a reader that sees a new blob with old metadata (or the
// reverse) detects the mismatch instead of serving a mixed pair.
func (p *Publisher) Publish(ctx context.Context, build *indexer.Build) error {
	if build.Index.Size() != len(build.Records) {
		return fmt.Errorf("%w: %d vectors, %d records", models.ErrCorruptIndex, build.Index.Size(), len(build.Records))
	}
	meta, err := EncodeMeta(build.Records)
	if err != nil {
		return err
	}
	var blob bytes.Buffer
	header := vector.Header{BuildID: build.ID, MetaDigest: sha256.Sum256(meta)}
	if err := vector.Encode(&blob, build.Index, header); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := p.store.Put(ctx, storage.Join(p.prefix, MetaName), meta, "application/x-ndjson"); err != nil {
		return fmt.Errorf("publish metadata: %w", err)
	}
	if err := p.store.Put(ctx, storage.Join(p.prefix, IndexName), blob.Bytes(), "application/octet-stream"); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	p.logger.Info("index published",
		zap.String("build_id", build.ID),
		zap.Int("vectors", build.Index.Size()),
		zap.Int("documents", build.Docs),
		zap.String("prefix", p.prefix),
	)
	return nil
}
