package search

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	snap *artifact.Snapshot
	err  error
}

func (s stubLoader) EnsureLoaded(ctx context.Context) (*artifact.Snapshot, error) {
	return s.snap, s.err
}

type recordingGenerator struct {
	calls    int
	question string
	excerpts string
}

func (g *recordingGenerator) Answer(ctx context.Context, question, excerpts string) (string, error) {
	g.calls++
	g.question = question
	g.excerpts = excerpts
	return "the answer", nil
}

func assertOutcome(t *testing.T, m *metrics.Metrics, outcome string) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `kotae_queries_total{outcome="`+outcome+`"} 1`)
}

func newTestEngine(t *testing.T, loader SnapshotLoader, gen Generator, m *metrics.Metrics) *Engine {
	t.Helper()
	emb := embedding.NewMockEmbedder(2)
	emb.Fixed = map[string][]float32{"refunds?": {1, 0}}
	cfg := &config.QueryConfig{TopK: 8, MaxDocs: 3, ContextChars: 1800}
	return NewEngine(loader, emb, NewPacker(nil, 300, nil), gen, cfg, WithMetrics(m), WithContextLogging(true))
}

func TestEngine_Answer(t *testing.T) {
	snap := snapshotOf(t,
		row{doc: "policy", vec: []float32{1, 0}},
		row{doc: "faq", vec: []float32{0.8, 0.6}},
		row{doc: "policy", vec: []float32{0.6, 0.8}},
	)
	gen := &recordingGenerator{}
	m := metrics.New()
	e := newTestEngine(t, stubLoader{snap: snap}, gen, m)

	resp, err := e.Answer(context.Background(), &models.QueryRequest{Q: "  refunds?  "})
	require.NoError(t, err)
	assert.Equal(t, "the answer", resp.Answer)
	assert.Equal(t, "refunds?", gen.question)
	assert.True(t, strings.HasPrefix(gen.excerpts, "[policy title] (file:///docs/policy)\n- chunk 0 of policy\n- chunk 2 of policy\n[faq title]"))

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, models.Source{
		DocID:     "policy",
		Title:     "policy title",
		SourceURI: "file:///docs/policy",
		Snippets:  []string{"chunk 0 of policy", "chunk 2 of policy"},
	}, resp.Sources[0])
	assert.Equal(t, "faq", resp.Sources[1].DocID)
	assertOutcome(t, m, "answered")
}

func TestEngine_NoHits(t *testing.T) {
	snap := snapshotOf(t, row{doc: "a", tags: []string{"a", "b"}, vec: []float32{1, 0}})
	gen := &recordingGenerator{}
	m := metrics.New()
	e := newTestEngine(t, stubLoader{snap: snap}, gen, m)

	resp, err := e.Answer(context.Background(), &models.QueryRequest{
		Q:       "refunds?",
		Filters: &models.QueryFilters{Tags: []string{"c"}},
	})
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, gen.calls, "generator must not run without context")
	assertOutcome(t, m, "no_context")
}

func TestEngine_KDefaultsToTopK(t *testing.T) {
	var rows []row
	for _, doc := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		rows = append(rows, row{doc: doc, vec: []float32{1, 0}})
	}
	gen := &recordingGenerator{}
	e := newTestEngine(t, stubLoader{snap: snapshotOf(t, rows...)}, gen, nil)
	e.config.MaxDocs = 100

	resp, err := e.Answer(context.Background(), &models.QueryRequest{Q: "refunds?"})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 8)

	resp, err = e.Answer(context.Background(), &models.QueryRequest{Q: "refunds?", K: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 2)
}

func TestEngine_InvalidRequest(t *testing.T) {
	m := metrics.New()
	e := newTestEngine(t, stubLoader{}, &recordingGenerator{}, m)
	_, err := e.Answer(context.Background(), &models.QueryRequest{Q: "   "})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assertOutcome(t, m, "invalid")
}

func TestEngine_LoaderErrorsPropagate(t *testing.T) {
	for _, sentinel := range []error{models.ErrIndexUnavailable, models.ErrCorruptIndex} {
		e := newTestEngine(t, stubLoader{err: sentinel}, &recordingGenerator{}, nil)
		_, err := e.Answer(context.Background(), &models.QueryRequest{Q: "refunds?"})
		assert.True(t, errors.Is(err, sentinel), "got %v", err)
	}
}
