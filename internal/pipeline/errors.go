package pipeline

import (
	"errors"
	"net/http"
)

// Engine errors for workflow operations.
var (
	// ErrAlreadyStarted indicates a workflow already exists for the document.
	ErrAlreadyStarted = errors.New("workflow already started")
	// ErrNotFound indicates no workflow exists for the document.
	ErrNotFound = errors.New("workflow not found")
	// ErrMissingDependency indicates a stage requested the output of a
	// stage that has not completed.
	ErrMissingDependency = errors.New("missing stage dependency")
	// ErrStageFailed wraps the error produced by a failed required stage.
	ErrStageFailed = errors.New("stage failed")
	// ErrTimeout indicates a stage exceeded its invocation timeout.
	ErrTimeout = errors.New("stage timed out")
	// ErrIncompleteWorkflow indicates the workflow has not progressed far
	// enough to satisfy the request.
	ErrIncompleteWorkflow = errors.New("workflow incomplete")
	// ErrStoreUnavailable indicates the state store could not be reached.
	ErrStoreUnavailable = errors.New("state store unavailable")
	// ErrUnknownStage indicates a stage name outside the registered set.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrInvalidTransition indicates a stage status regression was attempted.
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// MapHTTPStatus maps engine errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrAlreadyStarted) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrIncompleteWorkflow) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrMissingDependency) || errors.Is(err, ErrUnknownStage) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
