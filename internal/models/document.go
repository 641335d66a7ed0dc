// Package models defines core data structures for chunks, queries, and answers.
package models

// ChunkRecord is the metadata row stored alongside each vector in the index.
// Ordinal is the row offset of the vector; rows are dense from 0.
type ChunkRecord struct {
	DocID      string   `json:"doc_id"`
	ChunkID    string   `json:"chunk_id"`
	Title      string   `json:"title"`
	SourceURI  string   `json:"source_uri"`
	SourceKey  string   `json:"source_key,omitempty"`
	Mime       string   `json:"mime,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	UploadedAt string   `json:"uploaded_at,omitempty"`
	Ordinal    int      `json:"i"`
	Offset     int      `json:"offset,omitempty"` // byte offset of the chunk in the extracted text; equals the object offset for UTF-8 text documents
	Preview    string   `json:"preview"`
}

// SourceDocument is a document read from the docs prefix, ready for chunking.
type SourceDocument struct {
	Key        string
	Title      string
	SourceURI  string
	Mime       string
	Tags       []string
	UploadedAt string
	Text       string
}
