// Package documents implements the document and chunk data model: CRUD over
// a project's ingested documents and the chunk rows produced by the
// ingestion pipeline, plus the idempotent re-processing invariant (chunks
// either fully match the current ingestion or are empty).
package documents

import "time"

// ContentType is the closed set of document content types.
type ContentType string

const (
	ContentDesignToken ContentType = "design_token"
	ContentContract    ContentType = "contract"
	ContentComponent   ContentType = "component"
	ContentSpec        ContentType = "spec"
	ContentNote        ContentType = "note"
	ContentGeneral     ContentType = "general"
)

var validContentTypes = map[ContentType]bool{
	ContentDesignToken: true, ContentContract: true, ContentComponent: true,
	ContentSpec: true, ContentNote: true, ContentGeneral: true,
}

// ValidContentType reports whether ct belongs to the closed content-type set.
func ValidContentType(ct string) bool {
	return validContentTypes[ContentType(ct)]
}

// Metadata is an open, JSON-serialisable property bag.
type Metadata map[string]any

// Document is one ingested source document belonging to a project.
type Document struct {
	ID           string      `json:"id"`
	ProjectID    string      `json:"project_id"`
	Filename     string      `json:"filename,omitempty"`
	ContentType  ContentType `json:"content_type"`
	SourceURL    string      `json:"source_url,omitempty"`
	RawContent   string      `json:"raw_content"`
	Metadata     Metadata    `json:"metadata"`
	Processed    bool        `json:"processed"`
	ProcessedAt  *time.Time  `json:"processed_at,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Chunk is one token-bounded window of a document's text, the unit of
// embedding and extraction. VectorPointID is the identifier used in the
// vector collection; by default it equals ID.
type Chunk struct {
	ID            string   `json:"id"`
	DocumentID    string   `json:"document_id"`
	Content       string   `json:"content"`
	ChunkIndex    int      `json:"chunk_index"`
	TokenCount    int      `json:"token_count"`
	VectorPointID string   `json:"vector_point_id"`
	Metadata      Metadata `json:"metadata"`
}
