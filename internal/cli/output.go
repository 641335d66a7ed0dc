// Package cli provides output formatting and a server client for the kotae CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its cited sources.
func WriteAnswer(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if len(resp.Sources) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nSources:\n")
	for i, src := range resp.Sources {
		title := src.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(w, "  [%d] %s\n      %s\n", i+1, title, src.SourceURI)
		for _, snip := range src.Snippets {
			fmt.Fprintf(w, "      - %s\n", TruncateWords(snip, 24))
		}
	}
	return nil
}

// WriteIndexResult writes the outcome of a rebuild.
func WriteIndexResult(w io.Writer, res *models.IndexResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Msg != "" {
		fmt.Fprintf(w, "Index not published: %s\n", res.Msg)
		return nil
	}
	fmt.Fprintf(w, "Published build %s: %d chunks from %d documents\n", res.BuildID, res.Count, res.Docs)
	return nil
}

// WriteStatus writes the index status and configuration.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	if !st.Index.Loaded {
		fmt.Fprintln(w, "index:              not loaded")
	} else {
		fmt.Fprintf(w, "build_id:           %s\n", st.Index.BuildID)
		fmt.Fprintf(w, "vectors:            %d   # chunks in the resident index\n", st.Index.Vectors)
		fmt.Fprintf(w, "documents:          %d\n", st.Index.Documents)
		fmt.Fprintf(w, "loaded_at:          %s\n", st.Index.LoadedAt.Format("2006-01-02 15:04:05"))
	}
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *st.DiskUsageBytes)
	}
	if len(st.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, key := range sortedKeys(st.Config) {
			fmt.Fprintf(w, "%-19s %v\n", key+":", st.Config[key])
		}
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
