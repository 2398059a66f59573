package fingerprint

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Page is one text-bearing page of a source document.
type Page struct {
	Number int
	Text   string
}

// Extractor produces text-bearing pages from a source byte stream.
//
// PDF (and other binary format) extraction is a pluggable capability; the
// pipeline only depends on this boundary. Implementations must return pages
// in document order with 1-based page numbers and skip pages that carry no
// text after cleanup.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) ([]Page, error)
}

// whitespaceRun collapses runs of whitespace to a single space.
var whitespaceRun = regexp.MustCompile(`\s+`)

// TextExtractor extracts pages from plain text sources. Form feed characters
// (\f) delimit pages; a source without form feeds is a single page.
type TextExtractor struct{}

// NewTextExtractor creates a TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract implements Extractor.
func (e *TextExtractor) Extract(ctx context.Context, r io.Reader) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	var pages []Page
	for i, pageText := range strings.Split(string(raw), "\f") {
		cleaned := strings.TrimSpace(whitespaceRun.ReplaceAllString(pageText, " "))
		if cleaned == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: cleaned})
	}

	if len(pages) == 0 {
		return nil, ErrEmptySource
	}
	return pages, nil
}
