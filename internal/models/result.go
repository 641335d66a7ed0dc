package models

import "time"

// Hit is a single retrieval result: a chunk and its inner-product score.
type Hit struct {
	Score float64
	Chunk *ChunkRecord
}

// DocumentGroup holds the best hits of one document. Score is the top hit's score.
type DocumentGroup struct {
	DocID string
	Score float64
	Hits  []Hit
}

// Source is a cited document in a query response.
type Source struct {
	DocID     string   `json:"doc_id"`
	Title     string   `json:"title"`
	SourceURI string   `json:"source_uri"`
	Snippets  []string `json:"snippets"`
}

// QueryResponse is the answer to a question plus the documents it drew on.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// IndexResult reports the outcome of a build and publish.
type IndexResult struct {
	OK      bool   `json:"ok"`
	Count   int    `json:"count,omitempty"`
	Docs    int    `json:"docs,omitempty"`
	BuildID string `json:"build_id,omitempty"`
	Msg     string `json:"msg,omitempty"`
}

// IndexStatus describes the resident snapshot.
type IndexStatus struct {
	Loaded           bool      `json:"loaded"`
	BuildID          string    `json:"build_id,omitempty"`
	Vectors          int       `json:"vectors"`
	Documents        int       `json:"documents"`
	IndexFingerprint string    `json:"index_fingerprint,omitempty"`
	MetaFingerprint  string    `json:"meta_fingerprint,omitempty"`
	LoadedAt         time.Time `json:"loaded_at,omitzero"`
}

// Status is the body of GET /api/v1/status.
type Status struct {
	Index          IndexStatus    `json:"index"`
	DiskUsageBytes *int64         `json:"disk_usage_bytes,omitempty"`
	Config         map[string]any `json:"config"`
}
