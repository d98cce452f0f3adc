// Package documents implements the document domain for Paddock.
// It provides types, data access, and business logic for document
// upload, registration, metadata management, and blob storage integration.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document represents a registered document with its metadata and blob
// storage reference. Compliance status lives in the workflow state, not
// here; the registry records only what was uploaded.
type Document struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   *int      `json:"page_count"`
	StorageKey  string    `json:"storage_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to upload and register a new
// document. Data holds the raw file bytes. PageCount is optional and may
// be extracted by the caller via pdfcpu; nil values are stored as NULL.
type CreateCommand struct {
	Data        []byte
	Filename    string
	Title       string
	ContentType string
	PageCount   *int
}
