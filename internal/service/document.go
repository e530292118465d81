// Package service is the application facade over the intake pipeline, the
// stores and the derived views. Callers (CLI, embedding programs) talk to
// this layer only.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ianbrucey/war-room-sub000/internal/index"
	"github.com/ianbrucey/war-room-sub000/internal/manifest"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/pipeline"
	"github.com/ianbrucey/war-room-sub000/internal/store"
)

// NewDocumentService creates a new DocumentService.
func NewDocumentService(st store.Store, p *pipeline.Pipeline, agg *manifest.Aggregator, idx index.Indexer) *DocumentService {
	return &DocumentService{
		store:      st,
		pipeline:   p,
		aggregator: agg,
		indexer:    idx,
	}
}

// DocumentService manages cases and their documents.
type DocumentService struct {
	store      store.Store
	pipeline   *pipeline.Pipeline
	aggregator *manifest.Aggregator
	indexer    index.Indexer
}

// CreateCase creates a new case.
func (d *DocumentService) CreateCase(ctx context.Context, title string) (*model.Case, error) {
	c := &model.Case{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := d.store.CreateCase(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCase retrieves a case by ID.
func (d *DocumentService) GetCase(ctx context.Context, id string) (*model.Case, error) {
	return d.store.GetCase(ctx, id)
}

// ListCases retrieves all cases.
func (d *DocumentService) ListCases(ctx context.Context) ([]*model.Case, error) {
	return d.store.ListCases(ctx)
}

// Ingest accepts an upload into a case and starts asynchronous processing.
// The returned document carries the intake status; rejected inputs come back
// as a failed record together with the rejection error.
func (d *DocumentService) Ingest(ctx context.Context, caseID string, content []byte, filename string) (*model.Document, error) {
	if _, err := d.store.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return d.pipeline.Ingest(ctx, caseID, content, filename)
}

// GetDocument retrieves a document by ID.
func (d *DocumentService) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	return d.store.GetDocument(ctx, id)
}

// ListDocuments retrieves all documents of a case.
func (d *DocumentService) ListDocuments(ctx context.Context, caseID string) ([]*model.Document, error) {
	return d.store.ListDocuments(ctx, caseID)
}

// GetManifest returns the derived case manifest.
func (d *DocumentService) GetManifest(ctx context.Context, caseID string) (*model.CaseManifest, error) {
	return d.aggregator.GetManifest(ctx, caseID)
}

// Search runs a semantic query over the indexed documents of a case.
func (d *DocumentService) Search(ctx context.Context, caseID, query string, filters index.Filters, limit int) ([]index.Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	return d.indexer.Search(ctx, caseID, query, filters, limit)
}

// RetryDocument re-enters the failed stage of a failed document.
func (d *DocumentService) RetryDocument(ctx context.Context, id string) error {
	return d.pipeline.Retry(ctx, id)
}

// DeleteDocument removes a document, its artifacts and its index entries.
func (d *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	return d.pipeline.Delete(ctx, id)
}
