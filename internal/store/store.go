package store

import (
	"context"
	"errors"
	"time"

	"github.com/ianbrucey/war-room-sub000/internal/model"
)

var (
	// ErrStatusConflict is returned when a guarded status transition finds
	// the document in an unexpected state. Duplicate stage triggers and
	// concurrent mutations both surface as this error.
	ErrStatusConflict = errors.New("document is not in the expected processing status")
	// ErrFolderNameTaken is returned when a folder name is already used
	// within the case.
	ErrFolderNameTaken = errors.New("folder name already taken within case")
)

type Store interface {
	CaseStore
	DocumentStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type CaseStore interface {
	// CreateCase creates a new case.
	CreateCase(ctx context.Context, c *model.Case) error
	// GetCase retrieves a case by ID.
	GetCase(ctx context.Context, id string) (*model.Case, error)
	// ListCases retrieves all cases.
	ListCases(ctx context.Context) ([]*model.Case, error)
}

type DocumentStore interface {
	// CreateDocument creates a new document record.
	CreateDocument(ctx context.Context, doc *model.Document) error
	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	// ListDocuments retrieves all documents for a case.
	ListDocuments(ctx context.Context, caseID string) ([]*model.Document, error)
	// ListStaleDocuments retrieves non-terminal documents untouched since the
	// given time. Used by the reconciler only.
	ListStaleDocuments(ctx context.Context, caseID string, olderThan time.Time) ([]*model.Document, error)
	// FolderNameTaken reports whether a folder name is already used within a case.
	FolderNameTaken(ctx context.Context, caseID, folderName string) (bool, error)
	// TransitionStatus atomically moves a document from one status to another,
	// applying the extra column updates in the same write. Returns
	// ErrStatusConflict when the document is not in the expected status.
	TransitionStatus(ctx context.Context, id string, from, to model.ProcessingStatus, updates map[string]interface{}) error
	// MarkFailed moves a non-terminal document to failed, recording the stage
	// and cause.
	MarkFailed(ctx context.Context, id string, stage model.Stage, cause, errMsg string) error
	// DeleteDocument removes a document record.
	DeleteDocument(ctx context.Context, id string) error
}
