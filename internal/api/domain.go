package api

import (
	"fmt"

	"github.com/sampoursoltan11/paddock-sub000/internal/catalog"
	"github.com/sampoursoltan11/paddock-sub000/internal/config"
	"github.com/sampoursoltan11/paddock-sub000/internal/documents"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/internal/reports"
	"github.com/sampoursoltan11/paddock-sub000/internal/rules"
	"github.com/sampoursoltan11/paddock-sub000/internal/stages"
	"github.com/sampoursoltan11/paddock-sub000/internal/workflows"
	"github.com/sampoursoltan11/paddock-sub000/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents documents.System
	Catalog   catalog.System
	Workflows workflows.System
}

// NewDomain creates all domain systems from the API runtime: the
// document and catalog systems, the stage runtime that binds them into
// the pipeline, and the workflows system that executes it.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	docsSystem := documents.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	catalogSystem := catalog.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	ruleSet, err := rules.Load(cfg.Engine.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	store := pipeline.NewBlobStore(runtime.Storage, runtime.Logger)
	builder := reports.NewBuilder(store, runtime.Storage, runtime.Logger)

	registry, err := stages.BuildRegistry(&stages.Runtime{
		Agent:     cfg.Agent,
		Storage:   runtime.Storage,
		Documents: docsSystem,
		Catalog:   catalogSystem,
		Rules:     ruleSet,
		Index:     runtime.Index,
		Store:     store,
		Reports:   builder,
		Logger:    runtime.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build stage registry: %w", err)
	}

	orchestrator := pipeline.NewOrchestrator(
		registry,
		store,
		runtime.Logger,
		cfg.Engine.StageTimeoutDuration(),
	)

	workflowsSystem := workflows.New(
		orchestrator,
		store,
		runtime.Storage,
		cfg.Engine.MaxConcurrent,
		runtime.Logger,
	)

	return &Domain{
		Documents: docsSystem,
		Catalog:   catalogSystem,
		Workflows: workflowsSystem,
	}, nil
}

// Start registers domain systems that participate in lifecycle
// coordination.
func (d *Domain) Start(lc *lifecycle.Coordinator) error {
	return d.Workflows.Start(lc)
}
