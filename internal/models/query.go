package models

import (
	"fmt"
	"strings"
)

// QueryFilters restricts retrieval. Empty fields do not filter.
type QueryFilters struct {
	DocID []string `json:"doc_id,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Mime  []string `json:"mime,omitempty"`
}

// QueryRequest is the body of a question.
type QueryRequest struct {
	Q       string        `json:"q"`
	K       int           `json:"k,omitempty"`
	Filters *QueryFilters `json:"filters,omitempty"`
}

// Validate trims the question and returns ErrInvalidRequest when it is empty.
func (r *QueryRequest) Validate() error {
	r.Q = strings.TrimSpace(r.Q)
	if r.Q == "" {
		return fmt.Errorf("%w: missing q", ErrInvalidRequest)
	}
	if r.K < 0 {
		r.K = 0
	}
	return nil
}

// Empty reports whether no filter field is set.
func (f *QueryFilters) Empty() bool {
	return f == nil || (len(f.DocID) == 0 && len(f.Tags) == 0 && len(f.Mime) == 0)
}
