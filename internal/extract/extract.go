// Package extract turns original document bytes into page-annotated plain
// text. Two interchangeable strategies exist: an OCR-backed client for
// scanned and complex documents, and a lightweight text-layer strategy for
// PDFs with a text layer, plaintext, markdown and CSV. The router prefers
// OCR where it applies and falls back to the text layer.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ianbrucey/war-room-sub000/internal/model"
)

var (
	// ErrInputRejected marks inputs refused before any adapter call:
	// oversized files, page counts over the limit, unsupported kinds.
	ErrInputRejected = errors.New("input rejected")
	// ErrNoTextContent is returned when a strategy finds nothing to extract.
	ErrNoTextContent = errors.New("no text content found")
)

// Result is the output of a successful extraction. Counts are computed from
// the annotated text, never trusted from the source service.
type Result struct {
	Text      string
	PageCount int
	WordCount int
}

// Extractor is the extraction capability adapter.
type Extractor interface {
	// Extract produces page-annotated plain text from original bytes.
	Extract(ctx context.Context, content []byte, fileType model.FileType) (*Result, error)
	// Supports reports whether this strategy handles the file type.
	Supports(fileType model.FileType) bool
}

// PageMarker is the page boundary annotation inserted into extracted text so
// downstream consumers can recover page-level provenance.
func PageMarker(page int) string {
	return fmt.Sprintf("--- Page %d ---", page)
}

// AnnotatePages joins per-page text with explicit page boundary markers.
func AnnotatePages(pages []string) string {
	var sb strings.Builder
	for i, page := range pages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(PageMarker(i + 1))
		sb.WriteByte('\n')
		sb.WriteString(strings.TrimSpace(page))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// SplitPages recovers the per-page text from annotated output. Text without
// markers counts as a single page.
func SplitPages(text string) []string {
	lines := strings.Split(text, "\n")
	var pages []string
	var current []string
	sawMarker := false

	flush := func() {
		page := strings.TrimSpace(strings.Join(current, "\n"))
		if page != "" || sawMarker {
			pages = append(pages, page)
		}
		current = current[:0]
	}

	for _, line := range lines {
		if isPageMarker(line) {
			if sawMarker {
				flush()
			}
			sawMarker = true
			continue
		}
		current = append(current, line)
	}
	flush()

	if len(pages) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			pages = []string{t}
		}
	}
	return pages
}

// CountPages counts page markers in annotated text; unmarked non-empty text
// is one page.
func CountPages(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if isPageMarker(line) {
			count++
		}
	}
	if count == 0 && strings.TrimSpace(text) != "" {
		return 1
	}
	return count
}

// CountWords counts whitespace-separated words, excluding marker lines.
func CountWords(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if isPageMarker(line) {
			continue
		}
		count += len(strings.Fields(line))
	}
	return count
}

func isPageMarker(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "--- Page ") || !strings.HasSuffix(line, " ---") {
		return false
	}
	num := strings.TrimSuffix(strings.TrimPrefix(line, "--- Page "), " ---")
	if num == "" {
		return false
	}
	for _, r := range num {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func finishResult(pages []string) *Result {
	text := AnnotatePages(pages)
	return &Result{
		Text:      text,
		PageCount: CountPages(text),
		WordCount: CountWords(text),
	}
}
