// Package extract turns document bytes into plain text, keyed by file extension.
package extract

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported is returned for extensions with no registered extractor.
var ErrUnsupported = errors.New("unsupported document format")

// Func extracts text from raw document bytes.
type Func func(content []byte) (string, error)

// Extractor maps lowercase extensions (with leading dot) to extractors.
type Extractor struct {
	formats map[string]Func
}

// NewExtractor returns an Extractor for plain text, Markdown, PDF, DOCX, and XLSX.
func NewExtractor() *Extractor {
	e := &Extractor{formats: make(map[string]Func)}
	for _, ext := range []string{".txt", ".md", ".rst"} {
		e.Register(ext, extractPlain)
	}
	e.Register(".pdf", extractPDF)
	e.Register(".docx", extractDOCX)
	e.Register(".xlsx", extractExcel)
	return e
}

// Register adds or replaces the extractor for ext.
func (e *Extractor) Register(ext string, fn Func) {
	e.formats[normalizeExt(ext)] = fn
}

// Supported reports whether ext has an extractor.
func (e *Extractor) Supported(ext string) bool {
	_, ok := e.formats[normalizeExt(ext)]
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := e.formats[normalizeExt(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return fn(content)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// extractPlain returns content as a string with invalid UTF-8 replaced by U+FFFD.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd"), nil
	}
	return string(content), nil
}
