package models

import "errors"

var (
	// ErrInvalidRequest is returned for malformed or incomplete queries.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrIndexUnavailable is returned when the published artifacts cannot be read.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrCorruptIndex is returned when the vector index and metadata disagree.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrUpstreamUnavailable is returned when a model call fails after all retries.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidResponse is returned when a model reply lacks the expected fields.
	ErrInvalidResponse = errors.New("invalid upstream response")
	// ErrNoDocuments is returned by a build that found nothing to index.
	ErrNoDocuments = errors.New("no documents")
)
