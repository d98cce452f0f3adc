package stages

import "errors"

// Sentinel errors for stage operations.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrExtractFailed    = errors.New("text extraction failed")
	ErrRenderFailed     = errors.New("failed to render page images")
	ErrAnalysisFailed   = errors.New("visual analysis failed")
	ErrLookupFailed     = errors.New("reference lookup failed")
	ErrIndexFailed      = errors.New("knowledge indexing failed")
)
