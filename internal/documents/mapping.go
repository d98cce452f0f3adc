package documents

import (
	"net/url"

	"github.com/sampoursoltan11/paddock-sub000/pkg/query"
	"github.com/sampoursoltan11/paddock-sub000/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("filename", "Filename").
	Project("title", "Title").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("uploaded_at", "UploadedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. ContentType uses exact matching; Filename and
// Title use case-insensitive contains matching.
type Filters struct {
	Filename    *string `json:"filename,omitempty"`
	Title       *string `json:"title,omitempty"`
	ContentType *string `json:"content_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Filename", f.Filename).
		WhereContains("Title", f.Title).
		WhereEquals("ContentType", f.ContentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if t := values.Get("title"); t != "" {
		f.Title = &t
	}

	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.Title,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.UploadedAt,
		&d.UpdatedAt,
	)
	return d, err
}
