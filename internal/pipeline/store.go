package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
)

// Store is durable persistence for workflow state and finalized reports,
// keyed by document id. Writes are last-writer-wins; correctness relies
// on the single-writer-per-document precondition enforced by the
// workflows system.
type Store interface {
	// State loads the workflow state for a document.
	// found is false when no workflow exists.
	State(ctx context.Context, documentID uuid.UUID) (*WorkflowState, bool, error)
	// PutState persists the workflow state for a document.
	PutState(ctx context.Context, documentID uuid.UUID, state *WorkflowState) error
	// Report loads the finalized compliance report for a document.
	Report(ctx context.Context, documentID uuid.UUID) (*compliance.Report, bool, error)
	// PutReport persists the finalized compliance report for a document.
	PutReport(ctx context.Context, documentID uuid.UUID, report *compliance.Report) error
}
