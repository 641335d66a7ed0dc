package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Snapshot is one loaded artifact pair. It is never modified after load.
type Snapshot struct {
	BuildID          string
	Index            *vector.FlatIndex
	Meta             []models.ChunkRecord
	IndexFingerprint string
	MetaFingerprint  string
	Documents        int
	LoadedAt         time.Time
}

// Loader keeps the most recent snapshot resident and reloads it when either
// artifact's fingerprint changes.
type Loader struct {
	store    storage.ObjectStore
	indexKey string
	metaKey  string
	current  atomic.Pointer[Snapshot]
	group    singleflight.Group
	attempts int
	pause    time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets a logger for reload events.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithMetrics records reload outcomes.
func WithMetrics(m *metrics.Metrics) LoaderOption {
	return func(ld *Loader) { ld.metrics = m }
}

// WithMismatchRetry sets how often a digest mismatch is re-read and the pause between reads.
func WithMismatchRetry(attempts int, pause time.Duration) LoaderOption {
	return func(ld *Loader) {
		if attempts > 0 {
			ld.attempts = attempts
		}
		ld.pause = pause
	}
}

// NewLoader creates a loader for the artifacts under prefix.
func NewLoader(store storage.ObjectStore, prefix string, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:    store,
		indexKey: storage.Join(prefix, IndexName),
		metaKey:  storage.Join(prefix, MetaName),
		attempts: 3,
		pause:    250 * time.Millisecond,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Current returns the resident snapshot without any I/O, or nil before the first load.
func (l *Loader) Current() *Snapshot {
	return l.current.Load()
}

// EnsureLoaded returns a snapshot matching the published artifacts. When both
// fingerprints equal the resident snapshot's, nothing is downloaded. While the
// artifacts disagree (a publish in progress) the resident snapshot, if any, is
// returned. Concurrent callers share one reload.
func (l *Loader) EnsureLoaded(ctx context.Context) (*Snapshot, error) {
	ch := l.group.DoChan("load", func() (any, error) {
		return l.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

var errDigestMismatch = errors.New("metadata digest does not match index header")

func (l *Loader) refresh(ctx context.Context) (*Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		snap, reloaded, err := l.tryLoad(ctx)
		if err == nil {
			if reloaded {
				l.current.Store(snap)
				l.record("loaded")
				if l.metrics != nil {
					l.metrics.IndexedChunks.Set(float64(snap.Index.Size()))
				}
				l.logger.Info("index loaded",
					zap.String("build_id", snap.BuildID),
					zap.Int("vectors", snap.Index.Size()),
					zap.Int("documents", snap.Documents),
				)
			}
			return snap, nil
		}
		if !errors.Is(err, errDigestMismatch) {
			l.record("error")
			return nil, err
		}
		lastErr = err
		l.logger.Warn("index artifacts out of step, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < l.attempts && l.pause > 0 {
			time.Sleep(l.pause)
		}
	}
	l.record("error")
	if cur := l.current.Load(); cur != nil {
		// a publish is in flight; keep answering from the previous build
		l.logger.Warn("serving resident index while artifacts are out of step",
			zap.String("build_id", cur.BuildID), zap.Error(lastErr))
		return cur, nil
	}
	return nil, fmt.Errorf("%w: %w", models.ErrCorruptIndex, lastErr)
}

func (l *Loader) tryLoad(ctx context.Context) (*Snapshot, bool, error) {
	idxInfo, err := l.store.Stat(ctx, l.indexKey)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", models.ErrIndexUnavailable, err)
	}
	metaInfo, err := l.store.Stat(ctx, l.metaKey)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", models.ErrIndexUnavailable, err)
	}
	if cur := l.current.Load(); cur != nil &&
		cur.IndexFingerprint == idxInfo.Fingerprint && cur.MetaFingerprint == metaInfo.Fingerprint {
		return cur, false, nil
	}

	metaBytes, err := l.store.Get(ctx, l.metaKey)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", models.ErrIndexUnavailable, err)
	}
	blob, err := l.store.Get(ctx, l.indexKey)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", models.ErrIndexUnavailable, err)
	}
	idx, header, err := vector.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", models.ErrCorruptIndex, err)
	}
	if sha256.Sum256(metaBytes) != header.MetaDigest {
		return nil, false, errDigestMismatch
	}
	meta, err := DecodeMeta(metaBytes)
	if err != nil {
		return nil, false, fmt.Errorf("%w: metadata: %w", models.ErrCorruptIndex, err)
	}
	if len(meta) != idx.Size() {
		return nil, false, fmt.Errorf("%w: %d metadata rows, %d vectors", models.ErrCorruptIndex, len(meta), idx.Size())
	}
	docs := make(map[string]struct{})
	for i := range meta {
		if meta[i].Ordinal != i {
			return nil, false, fmt.Errorf("%w: row %d has ordinal %d", models.ErrCorruptIndex, i, meta[i].Ordinal)
		}
		docs[meta[i].DocID] = struct{}{}
	}
	return &Snapshot{
		BuildID:          header.BuildID,
		Index:            idx,
		Meta:             meta,
		IndexFingerprint: idxInfo.Fingerprint,
		MetaFingerprint:  metaInfo.Fingerprint,
		Documents:        len(docs),
		LoadedAt:         time.Now(),
	}, true, nil
}

func (l *Loader) record(result string) {
	if l.metrics != nil {
		l.metrics.IndexReloads.WithLabelValues(result).Inc()
	}
}
