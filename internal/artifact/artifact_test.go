package artifact

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "indexes/latest/"

func testBuild(t *testing.T, id string, docs ...string) *indexer.Build {
	t.Helper()
	idx, err := vector.NewFlatIndex(2)
	require.NoError(t, err)
	var records []models.ChunkRecord
	var vecs [][]float32
	for i, doc := range docs {
		records = append(records, models.ChunkRecord{
			DocID:     doc,
			ChunkID:   fmt.Sprintf("%s_%d", doc, 0),
			Title:     doc + ".txt",
			SourceURI: "file:///docs/" + doc + ".txt",
			SourceKey: "docs/" + doc + ".txt",
			Mime:      "text/plain",
			Tags:      []string{},
			Ordinal:   i,
			Preview:   "preview of " + doc,
		})
		vecs = append(vecs, []float32{1, float32(i)})
	}
	require.NoError(t, idx.Add(context.Background(), vecs))
	return &indexer.Build{ID: id, Index: idx, Records: records, Docs: len(docs)}
}

// countingStore counts downloads and can serve a stale body for one Get.
type countingStore struct {
	storage.ObjectStore
	gets  atomic.Int32
	mu    sync.Mutex
	stale map[string][]byte
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	s.mu.Lock()
	if b, ok := s.stale[key]; ok {
		delete(s.stale, key)
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()
	return s.ObjectStore.Get(ctx, key)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	disk, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return &countingStore{ObjectStore: disk, stale: map[string][]byte{}}
}

func TestMetaRoundTrip(t *testing.T) {
	build := testBuild(t, "b1", "alpha", "beta", "gamma")
	data, err := EncodeMeta(build.Records)
	require.NoError(t, err)

	decoded, err := DecodeMeta(append([]byte("\n"), data...))
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	for i, rec := range decoded {
		assert.Equal(t, i, rec.Ordinal)
		assert.Equal(t, build.Records[i].ChunkID, rec.ChunkID)
	}

	_, err = DecodeMeta([]byte("{not json}\n"))
	assert.Error(t, err)
}

func TestPublishThenLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, testBuild(t, "build-1", "a", "b")))

	loader := NewLoader(store, prefix)
	assert.Nil(t, loader.Current())

	snap, err := loader.EnsureLoaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, "build-1", snap.BuildID)
	assert.Equal(t, 2, snap.Index.Size())
	assert.Len(t, snap.Meta, 2)
	assert.Equal(t, 2, snap.Documents)
	assert.Same(t, snap, loader.Current())
}

func TestEnsureLoaded_SkipsDownloadWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, testBuild(t, "build-1", "a")))
	loader := NewLoader(store, prefix)

	first, err := loader.EnsureLoaded(ctx)
	require.NoError(t, err)
	downloads := store.gets.Load()

	second, err := loader.EnsureLoaded(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, downloads, store.gets.Load(), "unchanged artifacts must not be downloaded again")
}

func TestEnsureLoaded_ReloadsAfterRepublish(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	pub := NewPublisher(store, prefix, nil)
	require.NoError(t, pub.Publish(ctx, testBuild(t, "build-1", "a")))
	loader := NewLoader(store, prefix)
	_, err := loader.EnsureLoaded(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, testBuild(t, "build-2", "a", "b", "c")))
	snap, err := loader.EnsureLoaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, "build-2", snap.BuildID)
	assert.Equal(t, 3, snap.Index.Size())
}

func TestEnsureLoaded_MissingArtifacts(t *testing.T) {
	loader := NewLoader(newStore(t), prefix)
	_, err := loader.EnsureLoaded(context.Background())
	assert.ErrorIs(t, err, models.ErrIndexUnavailable)
}

func TestEnsureLoaded_PersistentMismatchIsCorrupt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, testBuild(t, "build-1", "a", "b")))

	other, err := EncodeMeta(testBuild(t, "build-2", "x", "y").Records)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, storage.Join(prefix, MetaName), other, "application/x-ndjson"))

	loader := NewLoader(store, prefix, WithMismatchRetry(3, 0))
	_, err = loader.EnsureLoaded(ctx)
	assert.ErrorIs(t, err, models.ErrCorruptIndex)
	assert.Equal(t, int32(6), store.gets.Load(), "each of three attempts downloads both artifacts")
	assert.Nil(t, loader.Current())
}

func TestEnsureLoaded_MismatchDuringPublishServesResident(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, testBuild(t, "build-1", "a", "b")))
	loader := NewLoader(store, prefix, WithMismatchRetry(3, 0))
	_, err := loader.EnsureLoaded(ctx)
	require.NoError(t, err)

	// only the metadata of the next build has landed so far
	next, err := EncodeMeta(testBuild(t, "build-2", "x", "y").Records)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, storage.Join(prefix, MetaName), next, "application/x-ndjson"))

	snap, err := loader.EnsureLoaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, "build-1", snap.BuildID)
	assert.Equal(t, "a", snap.Meta[0].DocID)

	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, testBuild(t, "build-2", "x", "y")))
	snap, err = loader.EnsureLoaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, "build-2", snap.BuildID)
}

func TestEnsureLoaded_CorruptBlobIsCorrupt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, testBuild(t, "build-1", "a")))
	blob, err := store.Get(ctx, storage.Join(prefix, IndexName))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, storage.Join(prefix, IndexName), blob[:len(blob)-5], "application/octet-stream"))

	_, err = NewLoader(store, prefix).EnsureLoaded(ctx)
	assert.ErrorIs(t, err, models.ErrCorruptIndex)
}

func TestEnsureLoaded_TransientMismatchRecovers(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, testBuild(t, "build-1", "a", "b")))
	staleMeta, err := EncodeMeta(testBuild(t, "old", "z", "q").Records)
	require.NoError(t, err)
	store.stale[storage.Join(prefix, MetaName)] = staleMeta

	loader := NewLoader(store, prefix, WithMismatchRetry(3, 0))
	snap, err := loader.EnsureLoaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", snap.Meta[0].DocID)
}

func TestEnsureLoaded_OrdinalMismatchIsCorrupt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	build := testBuild(t, "build-1", "a", "b")
	build.Records[1].Ordinal = 7
	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, build))

	_, err := NewLoader(store, prefix).EnsureLoaded(ctx)
	assert.ErrorIs(t, err, models.ErrCorruptIndex)
}

func TestPublish_RejectsMisalignedBuild(t *testing.T) {
	build := testBuild(t, "build-1", "a", "b")
	build.Records = build.Records[:1]
	err := NewPublisher(newStore(t), prefix, nil).Publish(context.Background(), build)
	assert.ErrorIs(t, err, models.ErrCorruptIndex)
}

func TestEnsureLoaded_ConcurrentCallersShareSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, NewPublisher(store, prefix, nil).Publish(ctx, testBuild(t, "build-1", "a", "b")))
	loader := NewLoader(store, prefix)

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 8)
	errs := make([]error, 8)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = loader.EnsureLoaded(ctx)
		}(i)
	}
	wg.Wait()
	for i := range snaps {
		require.NoError(t, errs[i])
		assert.Same(t, loader.Current(), snaps[i])
	}
}

func TestEnsureLoaded_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(newStore(t), prefix).EnsureLoaded(ctx)
	assert.Error(t, err)
}
