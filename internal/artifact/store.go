// Package artifact owns the byte-level side of a document: the original file,
// the extracted text, and the metadata JSON. The layout per document is
//
//	{case}/documents/{folder}/original{ext}
//	{case}/documents/{folder}/extracted-text.txt
//	{case}/documents/{folder}/metadata.json
//
// plus {case}/.trash/{folder}.tar.br for archived folders awaiting manual
// recovery.
package artifact

import (
	"context"
	"errors"
	"time"
)

const (
	ExtractedTextFile = "extracted-text.txt"
	MetadataFile      = "metadata.json"
	OriginalPrefix    = "original"
	documentsDir      = "documents"
	trashDir          = ".trash"
)

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
)

// FolderInfo describes one document folder under a case.
type FolderInfo struct {
	Name    string
	ModTime time.Time
}

// Store is the byte-content side of the dual-store model. Writes are
// exclusive per document folder; reads are unrestricted.
type Store interface {
	// WriteOriginal persists the uploaded bytes. ext includes the leading dot.
	WriteOriginal(ctx context.Context, caseID, folder, ext string, content []byte) error
	// ReadOriginal returns the original bytes and their extension.
	ReadOriginal(ctx context.Context, caseID, folder string) ([]byte, string, error)
	// WriteExtractedText persists the page-annotated extraction output.
	WriteExtractedText(ctx context.Context, caseID, folder string, text []byte) error
	ReadExtractedText(ctx context.Context, caseID, folder string) ([]byte, error)
	// WriteMetadata overwrites the metadata artifact wholesale.
	WriteMetadata(ctx context.Context, caseID, folder string, meta []byte) error
	ReadMetadata(ctx context.Context, caseID, folder string) ([]byte, error)

	// HasOriginal, HasExtractedText and HasMetadata report artifact presence
	// with non-empty content. The reconciler checks these against record flags.
	HasOriginal(ctx context.Context, caseID, folder string) (bool, error)
	HasExtractedText(ctx context.Context, caseID, folder string) (bool, error)
	HasMetadata(ctx context.Context, caseID, folder string) (bool, error)

	// ListFolders enumerates all document folders for a case.
	ListFolders(ctx context.Context, caseID string) ([]FolderInfo, error)
	// DeleteFolder removes a document folder and its content.
	DeleteFolder(ctx context.Context, caseID, folder string) error
	// ArchiveFolder moves a folder into the case trash as a compressed tar
	// before removal, so garbage-collected content stays manually recoverable.
	ArchiveFolder(ctx context.Context, caseID, folder string) error
	// PurgeTrash removes archived folders older than the given time,
	// returning how many were removed.
	PurgeTrash(ctx context.Context, caseID string, olderThan time.Time) (int, error)
}
