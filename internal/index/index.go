// Package index is the semantic-index capability adapter. Extracted pages
// are embedded and stored as points in a vector collection, scoped by case.
package index

import (
	"context"
)

// Hit is one semantic search result.
type Hit struct {
	DocumentID string  `json:"document_id"`
	Excerpt    string  `json:"excerpt"`
	Page       int     `json:"page"`
	Score      float32 `json:"score"`
}

// Filters narrows a search within a case.
type Filters struct {
	DocumentID   string
	DocumentType string
}

// Indexer is the semantic-index capability adapter.
type Indexer interface {
	// IndexDocument embeds and stores the document's pages, returning opaque
	// references into the index system. Re-indexing replaces prior entries.
	IndexDocument(ctx context.Context, caseID, docID, docType string, pages []string) (storeRef, fileRef string, err error)
	// Search returns scored excerpts for documents in the case.
	Search(ctx context.Context, caseID, query string, filters Filters, limit int) ([]Hit, error)
	// DeleteDocument removes all index entries for the document.
	DeleteDocument(ctx context.Context, caseID, docID string) error
}

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}
