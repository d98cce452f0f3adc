// Package workflows exposes the compliance pipeline as a domain system:
// starting workflows, resuming interrupted ones, and serving workflow
// state and finished reports. Stage execution happens on a bounded
// background worker pool; HTTP requests never block on a running
// pipeline.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/internal/reports"
	"github.com/sampoursoltan11/paddock-sub000/pkg/lifecycle"
	"github.com/sampoursoltan11/paddock-sub000/pkg/storage"
)

// System defines the public contract for workflow operations.
type System interface {
	Handler() *Handler

	// Start registers lifecycle hooks and binds background execution to
	// the coordinator's context.
	Start(lc *lifecycle.Coordinator) error

	// StartWorkflow registers a workflow for a document and schedules its
	// execution. Fails with ErrAlreadyStarted if one exists.
	StartWorkflow(ctx context.Context, documentID uuid.UUID) (*pipeline.WorkflowState, error)

	// Resume schedules another execution pass for an existing workflow.
	// Completed work is skipped. Fails with ErrNotFound if no workflow
	// exists.
	Resume(ctx context.Context, documentID uuid.UUID) error

	// State returns the current workflow state for a document.
	State(ctx context.Context, documentID uuid.UUID) (*pipeline.WorkflowState, error)

	// Report returns the finished compliance report for a document.
	// Fails with ErrIncompleteWorkflow while the workflow has not yet
	// synthesized one.
	Report(ctx context.Context, documentID uuid.UUID) (*compliance.Report, error)

	// ReportArtifact streams the rendered HTML report for a document.
	// Fails with ErrIncompleteWorkflow while no artifact exists.
	ReportArtifact(ctx context.Context, documentID uuid.UUID) (*storage.DownloadResult, error)
}

type system struct {
	orchestrator *pipeline.Orchestrator
	store        pipeline.Store
	blobs        storage.System
	logger       *slog.Logger

	group  *errgroup.Group
	runCtx context.Context
	locks  [lockStripes]sync.Mutex
}

// lockStripes bounds lock memory independent of document count. Two
// documents sharing a stripe serialize their passes, which is safe,
// just occasionally slower.
const lockStripes = 64

// New creates a workflows system. maxConcurrent bounds how many
// documents execute simultaneously on the worker pool.
func New(
	orchestrator *pipeline.Orchestrator,
	store pipeline.Store,
	blobs storage.System,
	maxConcurrent int,
	logger *slog.Logger,
) System {
	group := &errgroup.Group{}
	group.SetLimit(max(maxConcurrent, 1))

	return &system{
		orchestrator: orchestrator,
		store:        store,
		blobs:        blobs,
		logger:       logger.With("system", "workflows"),
		group:        group,
		runCtx:       context.Background(),
	}
}

func (s *system) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *system) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting workflows system")
	s.runCtx = lc.Context()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		// Cancellation interrupts in-flight stages; their records stay
		// processing so a later resume re-attempts them. Wait for each
		// execution to persist its last transition.
		if err := s.group.Wait(); err != nil {
			s.logger.Error("workflow pool drained with error", "error", err)
		}
	})

	return nil
}

func (s *system) StartWorkflow(
	ctx context.Context,
	documentID uuid.UUID,
) (*pipeline.WorkflowState, error) {
	state, err := s.orchestrator.Start(ctx, documentID)
	if err != nil {
		return nil, err
	}

	s.dispatch(documentID)
	return state, nil
}

func (s *system) Resume(ctx context.Context, documentID uuid.UUID) error {
	state, err := s.orchestrator.State(ctx, documentID)
	if err != nil {
		return err
	}

	if !state.OverallStatus.Terminal() {
		s.dispatch(documentID)
	}
	return nil
}

func (s *system) State(ctx context.Context, documentID uuid.UUID) (*pipeline.WorkflowState, error) {
	return s.orchestrator.State(ctx, documentID)
}

func (s *system) Report(ctx context.Context, documentID uuid.UUID) (*compliance.Report, error) {
	report, found, err := s.store.Report(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if found {
		return report, nil
	}

	// Distinguish a workflow that has not synthesized yet from one that
	// never existed.
	if _, err := s.orchestrator.State(ctx, documentID); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("%w: report not yet generated for %s", pipeline.ErrIncompleteWorkflow, documentID)
}

func (s *system) ReportArtifact(
	ctx context.Context,
	documentID uuid.UUID,
) (*storage.DownloadResult, error) {
	result, err := s.blobs.Download(ctx, reports.ArtifactKey(documentID))
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrStoreUnavailable, err)
	}

	if _, err := s.orchestrator.State(ctx, documentID); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("%w: report artifact not yet generated for %s", pipeline.ErrIncompleteWorkflow, documentID)
}

// dispatch schedules one execution pass for a document on the worker
// pool. A striped mutex serializes passes for a document so the
// orchestrator's single-writer assumption holds even when start and
// resume race.
func (s *system) dispatch(documentID uuid.UUID) {
	s.group.Go(func() error {
		lock := s.lock(documentID)
		lock.Lock()
		defer lock.Unlock()

		if _, err := s.orchestrator.Run(s.runCtx, documentID); err != nil {
			s.logger.Error("workflow run failed", "document_id", documentID, "error", err)
		}
		return nil
	})
}

func (s *system) lock(documentID uuid.UUID) *sync.Mutex {
	return &s.locks[murmur3.Sum32(documentID[:])%lockStripes]
}
