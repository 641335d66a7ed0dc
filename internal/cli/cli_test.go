package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAnswer() *models.QueryResponse {
	return &models.QueryResponse{
		Answer: "Refunds are accepted within 30 days.",
		Sources: []models.Source{
			{DocID: "d1", Title: "Policy", SourceURI: "s3://bucket/docs/policy.txt", Snippets: []string{"Refunds are accepted within 30 days of purchase."}},
			{DocID: "d2", SourceURI: "s3://bucket/docs/faq.txt"},
		},
	}
}

func TestWriteAnswer_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnswer(&buf, sampleAnswer(), OutputText))
	out := buf.String()
	assert.Contains(t, out, "Refunds are accepted within 30 days.")
	assert.Contains(t, out, "[1] Policy")
	assert.Contains(t, out, "s3://bucket/docs/policy.txt")
	assert.Contains(t, out, "- Refunds are accepted within 30 days of purchase.")
	assert.Contains(t, out, "[2] Untitled")
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnswer(&buf, sampleAnswer(), OutputJSON))
	var decoded models.QueryResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *sampleAnswer(), decoded)
}

func TestWriteAnswer_NoSources(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnswer(&buf, &models.QueryResponse{Answer: "I couldn't find relevant context.", Sources: []models.Source{}}, OutputText))
	assert.NotContains(t, buf.String(), "Sources:")
}

func TestWriteIndexResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIndexResult(&buf, &models.IndexResult{OK: true, Msg: "no docs"}, OutputText))
	assert.Equal(t, "Index not published: no docs\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteIndexResult(&buf, &models.IndexResult{OK: true, Count: 40, Docs: 3, BuildID: "b1"}, OutputText))
	assert.Equal(t, "Published build b1: 40 chunks from 3 documents\n", buf.String())
}

func TestWriteStatus(t *testing.T) {
	usage := int64(2048)
	st := &models.Status{
		Index:          models.IndexStatus{Loaded: true, BuildID: "b1", Vectors: 10, Documents: 2, LoadedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		DiskUsageBytes: &usage,
		Config:         map[string]any{"top_k": 8, "chunk_size": 500},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, st, OutputText))
	out := buf.String()
	assert.Contains(t, out, "build_id:           b1")
	assert.Contains(t, out, "disk_usage_bytes:   2048")
	assert.Less(t, strings.Index(out, "chunk_size:"), strings.Index(out, "top_k:"), "config keys are sorted")

	buf.Reset()
	require.NoError(t, WriteStatus(&buf, &models.Status{}, OutputText))
	assert.Contains(t, buf.String(), "not loaded")
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, OutputJSON, f)
	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "a b c", TruncateWords("a  b\nc", 5))
	assert.Equal(t, "a b...", TruncateWords("a b c d", 2))
}

func TestClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/query":
			body, _ := io.ReadAll(r.Body)
			var req models.QueryRequest
			_ = json.Unmarshal(body, &req)
			if req.Q == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"missing q"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(sampleAnswer())
		case "/api/v1/index":
			_, _ = w.Write([]byte(`{"ok":true,"count":4,"docs":1,"build_id":"b9"}`))
		case "/api/v1/status":
			_, _ = w.Write([]byte(`{"index":{"loaded":true,"build_id":"b9","vectors":4,"documents":1},"config":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	ctx := context.Background()
	c := NewClient(ts.URL+"/", nil)

	resp, err := c.Ask(ctx, &models.QueryRequest{Q: "refunds?"})
	require.NoError(t, err)
	assert.Equal(t, sampleAnswer().Answer, resp.Answer)

	_, err = c.Ask(ctx, &models.QueryRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400: missing q")

	res, err := c.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b9", res.BuildID)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Index.Loaded)
	assert.Equal(t, 4, st.Index.Vectors)
}
