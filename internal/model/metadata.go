package model

// DocumentMetadata is the analysis artifact written to metadata.json. It is
// fully derived from extracted text, so re-running analysis overwrites it
// wholesale.
type DocumentMetadata struct {
	ExecutiveSummary string   `json:"executive_summary"`
	DocumentType     string   `json:"document_type"`
	KeyParties       []string `json:"key_parties"`
	MainArguments    []string `json:"main_arguments"`
	ImportantDates   []Dated  `json:"important_dates"`
	Jurisdiction     string   `json:"jurisdiction,omitempty"`
	Authorities      []string `json:"authorities"`
	CriticalFacts    []string `json:"critical_facts"`
	RequestedRelief  string   `json:"requested_relief,omitempty"`
	// Truncated marks metadata derived from capped input, so consumers can
	// detect incompleteness.
	Truncated bool `json:"truncated,omitempty"`
}

// Dated is a date reference with a page anchor for citation tooling.
type Dated struct {
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Page        int    `json:"page,omitempty"`
}

// CaseManifest is the derived case-level view. It is regenerated on demand
// from document records and metadata artifacts, never persisted as a source
// of truth.
type CaseManifest struct {
	CaseID    string             `json:"case_id"`
	Parties   []string           `json:"parties"`
	Timeline  []TimelineEntry    `json:"timeline"`
	Claims    []string           `json:"claims"`
	Documents []ManifestDocument `json:"documents"`
}

// TimelineEntry is one merged timeline row, anchored to its source document.
type TimelineEntry struct {
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	DocumentID  string `json:"document_id"`
	Page        int    `json:"page,omitempty"`
}

// ManifestDocument is the per-document row in the manifest.
type ManifestDocument struct {
	ID               string           `json:"id"`
	Filename         string           `json:"filename"`
	DocumentType     string           `json:"document_type,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	PageCount        int              `json:"page_count,omitempty"`
	Summary          string           `json:"summary,omitempty"`
}
