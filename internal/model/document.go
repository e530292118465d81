package model

import (
	"encoding/json"
	"time"
)

// ProcessingStatus is the authoritative pipeline state of a document. All
// has_X flags are conveniences derived from completed stages and must never
// contradict it.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusExtracting ProcessingStatus = "extracting"
	StatusAnalyzing  ProcessingStatus = "analyzing"
	StatusIndexing   ProcessingStatus = "indexing"
	StatusComplete   ProcessingStatus = "complete"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether no further stage may run from this status without
// an explicit retry.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Stage identifies one phase of the pipeline for failure records and retries.
type Stage string

const (
	StageUpload  Stage = "upload"
	StageExtract Stage = "extract"
	StageAnalyze Stage = "analyze"
	StageIndex   Stage = "index"
)

// FileType is the intake classification detected from content and extension.
type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeDocx  FileType = "docx"
	FileTypePptx  FileType = "pptx"
	FileTypeImage FileType = "image"
	FileTypeAudio FileType = "audio"
	FileTypeCSV   FileType = "csv"
	FileTypeText  FileType = "txt"
	FileTypeMD    FileType = "md"
)

// Failure causes recorded on the document when a stage gives up.
const (
	CauseInputRejected    = "input_rejected"
	CauseAdapterTransient = "adapter_transient_failure"
	CauseAdapterPermanent = "adapter_permanent_failure"
	CauseMissingArtifact  = "missing_artifact"
)

// Document is the authoritative record of an uploaded case file and its
// processing state.
type Document struct {
	ID       string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	CaseID   string `gorm:"type:uuid;not null;index;uniqueIndex:idx_case_folder" json:"case_id"`
	Filename string `gorm:"not null" json:"filename"`
	// FolderName is the sanitized on-disk folder segment, unique within a
	// case. Collisions are resolved by suffixing at intake.
	FolderName string `gorm:"not null;uniqueIndex:idx_case_folder" json:"folder_name"`

	FileType     FileType `gorm:"not null" json:"file_type"`
	DocumentType string   `json:"document_type,omitempty"` // AI-classified, empty until analysis completes

	PageCount int `json:"page_count"`
	WordCount int `json:"word_count"`

	ProcessingStatus ProcessingStatus `gorm:"not null;default:'pending';index" json:"processing_status"`

	HasTextExtraction bool `gorm:"not null;default:false" json:"has_text_extraction"`
	HasMetadata       bool `gorm:"not null;default:false" json:"has_metadata"`
	RagIndexed        bool `gorm:"not null;default:false" json:"rag_indexed"`

	IndexStoreRef string `json:"index_store_ref,omitempty"`
	IndexFileRef  string `json:"index_file_ref,omitempty"`

	FailedStage  Stage  `json:"failed_stage,omitempty"`
	FailureCause string `json:"failure_cause,omitempty"`
	FailureError string `json:"failure_error,omitempty"`

	UploadedAt  time.Time  `gorm:"not null" json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"` // set only on terminal success
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (d *Document) MarshalBinary() ([]byte, error) {
	return json.Marshal(d)
}

// Case owns a set of documents.
type Case struct {
	ID        string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
