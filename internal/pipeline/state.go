// Package pipeline implements the workflow engine for Paddock.
// It provides the stage contract, the ordered stage registry, durable
// per-document workflow state, and the orchestrator that drives a
// document through every registered stage under a required/optional
// failure policy.
package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a workflow or of a single stage.
type Status string

// Workflow and stage lifecycle statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// canTransition encodes the allowed status progression:
// pending → processing → {completed | failed}. A stage left processing
// by a crashed run may be marked processing again on resume, but a
// terminal status never regresses.
func (s Status) canTransition(to Status) bool {
	switch to {
	case StatusProcessing:
		return s == StatusPending || s == StatusProcessing
	case StatusCompleted, StatusFailed:
		return s == StatusProcessing
	default:
		return false
	}
}

// StageRecord is the durable record of one stage's execution within a
// workflow. Output holds the stage's result payload as raw JSON; it is
// opaque to the engine and decoded only by downstream stages and the
// report builder.
type StageRecord struct {
	Status      Status          `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// WorkflowState is the durable per-document record of a workflow run.
// It is created exactly once at registration, mutated only by the
// orchestrator, and never deleted by the engine.
type WorkflowState struct {
	DocumentID    uuid.UUID               `json:"document_id"`
	OverallStatus Status                  `json:"overall_status"`
	CurrentStage  string                  `json:"current_stage,omitempty"`
	StartedAt     time.Time               `json:"started_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
	StageResults  map[string]*StageRecord `json:"stage_results"`
	Error         string                  `json:"error,omitempty"`
}

// NewWorkflowState creates a pending workflow state with one pending
// stage record per registered stage.
func NewWorkflowState(documentID uuid.UUID, registry *Registry, now time.Time) *WorkflowState {
	results := make(map[string]*StageRecord, len(registry.Stages()))
	for _, reg := range registry.Stages() {
		results[reg.Stage.Name()] = &StageRecord{Status: StatusPending}
	}

	return &WorkflowState{
		DocumentID:    documentID,
		OverallStatus: StatusPending,
		StartedAt:     now,
		UpdatedAt:     now,
		StageResults:  results,
	}
}

// Stage returns the record for the named stage. Returns ErrUnknownStage
// if the name was never registered.
func (w *WorkflowState) Stage(name string) (*StageRecord, error) {
	rec, ok := w.StageResults[name]
	if !ok {
		return nil, ErrUnknownStage
	}
	return rec, nil
}

// transitionStage moves the named stage to the given status, enforcing
// the progression invariant. Terminal transitions set CompletedAt.
func (w *WorkflowState) transitionStage(name string, to Status, now time.Time) error {
	rec, err := w.Stage(name)
	if err != nil {
		return err
	}

	if !rec.Status.canTransition(to) {
		return ErrInvalidTransition
	}

	rec.Status = to
	switch to {
	case StatusProcessing:
		rec.StartedAt = now
		w.CurrentStage = name
	case StatusCompleted, StatusFailed:
		rec.CompletedAt = &now
	}

	return nil
}

// completedOutputs collects raw outputs of every completed stage,
// keyed by stage name. Failed and pending stages are absent.
func (w *WorkflowState) completedOutputs() map[string]json.RawMessage {
	outputs := make(map[string]json.RawMessage)
	for name, rec := range w.StageResults {
		if rec.Status == StatusCompleted {
			outputs[name] = rec.Output
		}
	}
	return outputs
}
