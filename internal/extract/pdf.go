package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the plain text of each page, pages separated by a blank
// line. Pages whose content stream cannot be decoded are skipped; the document
// fails only when no page yields text and at least one page errored.
func extractPDF(content []byte) (text string, err error) {
	defer func() {
		// the reader panics on some malformed xref tables
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var (
		pages   []string
		lastErr error
	)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		s, err := p.GetPlainText(fonts)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", i, err)
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			pages = append(pages, s)
		}
	}
	if len(pages) == 0 && lastErr != nil {
		return "", fmt.Errorf("extract PDF text: %w", lastErr)
	}
	return strings.Join(pages, "\n\n"), nil
}
