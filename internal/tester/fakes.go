package tester

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ianbrucey/war-room-sub000/internal/extract"
	"github.com/ianbrucey/war-room-sub000/internal/index"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/notify"
)

// FakeExtractor extracts plaintext inputs like the real text-layer strategy
// but lets tests inject per-call failures.
type FakeExtractor struct {
	mu    sync.Mutex
	Err   error
	Fails int // fail this many calls with Err before succeeding
	Calls int
}

func (f *FakeExtractor) Supports(fileType model.FileType) bool {
	return true
}

func (f *FakeExtractor) Extract(ctx context.Context, content []byte, fileType model.FileType) (*extract.Result, error) {
	f.mu.Lock()
	f.Calls++
	fail := f.Err != nil && (f.Fails == 0 || f.Calls <= f.Fails)
	f.mu.Unlock()
	if fail {
		return nil, f.Err
	}

	pages := strings.Split(string(content), "\f")
	text := extract.AnnotatePages(pages)
	return &extract.Result{
		Text:      text,
		PageCount: len(pages),
		WordCount: len(strings.Fields(string(content))),
	}, nil
}

// FakeAnalyzer returns canned metadata, counting calls and optionally
// failing first.
type FakeAnalyzer struct {
	mu    sync.Mutex
	Meta  *model.DocumentMetadata
	Err   error
	Fails int
	Calls int
}

func (f *FakeAnalyzer) Analyze(ctx context.Context, extractedText, filename string) (*model.DocumentMetadata, error) {
	f.mu.Lock()
	f.Calls++
	fail := f.Err != nil && (f.Fails == 0 || f.Calls <= f.Fails)
	f.mu.Unlock()
	if fail {
		return nil, f.Err
	}

	if f.Meta != nil {
		return f.Meta, nil
	}
	return &model.DocumentMetadata{
		ExecutiveSummary: "summary of " + filename,
		DocumentType:     "Motion",
		KeyParties:       []string{"Plaintiff", "Defendant"},
	}, nil
}

// FakeIndexer records indexed pages in memory.
type FakeIndexer struct {
	mu      sync.Mutex
	Err     error
	Fails   int
	Calls   int
	Indexed map[string][]string // docID -> pages
	Deleted []string
}

func (f *FakeIndexer) IndexDocument(ctx context.Context, caseID, docID, docType string, pages []string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil && (f.Fails == 0 || f.Calls <= f.Fails) {
		return "", "", f.Err
	}
	if f.Indexed == nil {
		f.Indexed = make(map[string][]string)
	}
	f.Indexed[docID] = pages
	return "test-collection", fmt.Sprintf("%s/%s", caseID, docID), nil
}

func (f *FakeIndexer) Search(ctx context.Context, caseID, query string, filters index.Filters, limit int) ([]index.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var hits []index.Hit
	for docID, pages := range f.Indexed {
		if filters.DocumentID != "" && filters.DocumentID != docID {
			continue
		}
		for i, page := range pages {
			if strings.Contains(strings.ToLower(page), strings.ToLower(query)) {
				hits = append(hits, index.Hit{DocumentID: docID, Excerpt: page, Page: i + 1, Score: 1})
			}
		}
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *FakeIndexer) DeleteDocument(ctx context.Context, caseID, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Indexed, docID)
	f.Deleted = append(f.Deleted, docID)
	return nil
}

// RecordingNotifier captures emitted events in order.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *RecordingNotifier) Emit(event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *RecordingNotifier) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Event, len(r.events))
	copy(out, r.events)
	return out
}
