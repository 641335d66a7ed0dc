package models

import (
	"errors"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *QueryRequest
		wantErr bool
		wantQ   string
	}{
		{"empty q", &QueryRequest{Q: ""}, true, ""},
		{"whitespace q", &QueryRequest{Q: "  \n\t"}, true, ""},
		{"valid q", &QueryRequest{Q: "what is kotae?"}, false, "what is kotae?"},
		{"trims q", &QueryRequest{Q: "  hello  "}, false, "hello"},
		{"negative k reset", &QueryRequest{Q: "x", K: -3}, false, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if tt.req.Q != tt.wantQ {
				t.Errorf("Q = %q, want %q", tt.req.Q, tt.wantQ)
			}
			if tt.req.K < 0 {
				t.Errorf("K should not be negative, got %d", tt.req.K)
			}
		})
	}
}

func TestQueryFilters_Empty(t *testing.T) {
	var nilFilters *QueryFilters
	if !nilFilters.Empty() {
		t.Error("nil filters should be empty")
	}
	if !(&QueryFilters{Tags: []string{}}).Empty() {
		t.Error("empty tags should count as empty")
	}
	if (&QueryFilters{Mime: []string{"text/plain"}}).Empty() {
		t.Error("mime filter should not be empty")
	}
}
