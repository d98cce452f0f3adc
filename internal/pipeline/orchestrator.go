package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Orchestrator drives the registered stages in order against a document,
// persisting state transitions around each stage and applying the
// required/optional failure policy. Execution for one document is
// strictly sequential; the orchestrator assumes at most one concurrent
// writer per document id.
type Orchestrator struct {
	registry     *Registry
	store        Store
	logger       *slog.Logger
	stageTimeout time.Duration
}

// NewOrchestrator creates an Orchestrator. stageTimeout bounds each
// stage invocation; zero disables the bound.
func NewOrchestrator(
	registry *Registry,
	store Store,
	logger *slog.Logger,
	stageTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		registry:     registry,
		store:        store,
		logger:       logger.With("system", "orchestrator"),
		stageTimeout: stageTimeout,
	}
}

// Registry returns the orchestrator's stage registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Start creates and persists a pending workflow state for a document
// with every registered stage initialized to pending. Fails with
// ErrAlreadyStarted if a workflow already exists. Execution itself is
// triggered by Run.
func (o *Orchestrator) Start(ctx context.Context, documentID uuid.UUID) (*WorkflowState, error) {
	_, found, err := o.store.State(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyStarted, documentID)
	}

	state := NewWorkflowState(documentID, o.registry, time.Now().UTC())
	if err := o.store.PutState(ctx, documentID, state); err != nil {
		return nil, err
	}

	o.logger.Info("workflow started", "document_id", documentID, "stages", o.registry.Names())
	return state, nil
}

// Run executes the pipeline for a document, resuming from whatever the
// persisted state records. Completed stages are skipped, so re-invoking
// Run after a crash re-attempts only unfinished work. A required-stage
// failure aborts the loop and marks the workflow failed; optional-stage
// failures are recorded and downstream stages proceed with that output
// absent. Run on a terminal workflow is a no-op returning current state.
func (o *Orchestrator) Run(ctx context.Context, documentID uuid.UUID) (*WorkflowState, error) {
	state, found, err := o.store.State(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}

	if state.OverallStatus.Terminal() {
		return state, nil
	}

	state.OverallStatus = StatusProcessing
	if err := o.save(ctx, state); err != nil {
		return state, err
	}

	for _, reg := range o.registry.Stages() {
		name := reg.Stage.Name()
		rec, err := state.Stage(name)
		if err != nil {
			return state, err
		}

		if rec.Status == StatusCompleted {
			continue
		}

		// A failed record at this point belongs to an optional stage from
		// an earlier pass; retrying it would need an explicit reset.
		if rec.Status == StatusFailed {
			continue
		}

		if err := o.runStage(ctx, state, reg); err != nil {
			return state, err
		}
	}

	if !o.registry.requiredComplete(state) {
		// Unreachable through the loop above; the guard preserves the
		// completed-iff-required-complete invariant against store drift.
		state.OverallStatus = StatusFailed
		state.Error = "required stage incomplete after pipeline run"
		if err := o.save(ctx, state); err != nil {
			return state, err
		}
		return state, fmt.Errorf("%w: required stage incomplete", ErrStageFailed)
	}

	now := time.Now().UTC()
	state.OverallStatus = StatusCompleted
	state.CompletedAt = &now
	if err := o.save(ctx, state); err != nil {
		return state, err
	}

	o.logger.Info("workflow completed", "document_id", documentID)
	return state, nil
}

// State fetches the current workflow state for a document.
// Fails with ErrNotFound if no workflow exists.
func (o *Orchestrator) State(ctx context.Context, documentID uuid.UUID) (*WorkflowState, error) {
	state, found, err := o.store.State(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	return state, nil
}

// runStage executes one stage with surrounding state persistence. A
// required-stage failure is returned wrapped in ErrStageFailed after the
// workflow is marked failed; an optional-stage failure is recorded and
// swallowed.
func (o *Orchestrator) runStage(ctx context.Context, state *WorkflowState, reg Registration) error {
	name := reg.Stage.Name()

	if err := state.transitionStage(name, StatusProcessing, time.Now().UTC()); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	if err := o.save(ctx, state); err != nil {
		return err
	}

	output, runErr := o.invoke(ctx, state.DocumentID, reg.Stage, NewOutputs(state.completedOutputs()))

	now := time.Now().UTC()
	if runErr != nil {
		// A canceled run context means the process is shutting down, not
		// that the stage failed. The record stays processing so a later
		// Run re-attempts exactly this stage. Stage-local timeouts carry
		// ErrTimeout and still count as failures.
		if ctx.Err() != nil && !errors.Is(runErr, ErrTimeout) {
			o.logger.Warn("stage interrupted", "document_id", state.DocumentID, "stage", name, "error", runErr)
			return fmt.Errorf("stage %s: %w", name, runErr)
		}

		if err := state.transitionStage(name, StatusFailed, now); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
		rec := state.StageResults[name]
		rec.Error = runErr.Error()

		if reg.Required {
			state.OverallStatus = StatusFailed
			state.Error = fmt.Sprintf("stage %s: %s", name, runErr)
			if err := o.save(ctx, state); err != nil {
				return err
			}
			o.logger.Error("required stage failed", "document_id", state.DocumentID, "stage", name, "error", runErr)
			return fmt.Errorf("stage %s: %w: %w", name, ErrStageFailed, runErr)
		}

		if err := o.save(ctx, state); err != nil {
			return err
		}
		o.logger.Warn("optional stage failed", "document_id", state.DocumentID, "stage", name, "error", runErr)
		return nil
	}

	raw, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("stage %s: encode output: %w", name, err)
	}

	if err := state.transitionStage(name, StatusCompleted, now); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	state.StageResults[name].Output = raw

	if err := o.save(ctx, state); err != nil {
		return err
	}

	o.logger.Info("stage completed", "document_id", state.DocumentID, "stage", name)
	return nil
}

// invoke runs a stage bounded by the configured timeout. Timeout errors
// are normalized to ErrTimeout so the failure policy can treat them like
// any other stage failure.
func (o *Orchestrator) invoke(
	ctx context.Context,
	documentID uuid.UUID,
	stage Stage,
	prior Outputs,
) (any, error) {
	runCtx := ctx
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	output, err := stage.Run(runCtx, documentID, prior)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, err
	}

	return output, nil
}

// save persists state with a refreshed UpdatedAt.
func (o *Orchestrator) save(ctx context.Context, state *WorkflowState) error {
	state.UpdatedAt = time.Now().UTC()
	return o.store.PutState(ctx, state.DocumentID, state)
}
