// Package stages implements the analysis stages of the document
// compliance pipeline and assembles them into an ordered registry.
package stages

import (
	"log/slog"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/sampoursoltan11/paddock-sub000/internal/catalog"
	"github.com/sampoursoltan11/paddock-sub000/internal/documents"
	"github.com/sampoursoltan11/paddock-sub000/internal/index"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/internal/reports"
	"github.com/sampoursoltan11/paddock-sub000/internal/rules"
	"github.com/sampoursoltan11/paddock-sub000/pkg/storage"
)

// Runtime bundles the dependencies that pipeline stages require.
// It is constructed by higher-level composition code from Infrastructure
// and Domain systems.
type Runtime struct {
	Agent     gaconfig.AgentConfig
	Storage   storage.System
	Documents documents.System
	Catalog   catalog.System
	Rules     *rules.RuleSet
	Index     index.System
	Store     pipeline.Store
	Reports   *reports.Builder
	Logger    *slog.Logger
}

// BuildRegistry assembles the stage registry in canonical execution
// order with each stage's failure policy.
func BuildRegistry(rt *Runtime) (*pipeline.Registry, error) {
	return pipeline.NewRegistry(
		pipeline.Registration{Stage: ExtractStage(rt), Required: true},
		pipeline.Registration{Stage: VisualStage(rt), Required: false},
		pipeline.Registration{Stage: LookupStage(rt), Required: false},
		pipeline.Registration{Stage: CheckStage(rt), Required: true},
		pipeline.Registration{Stage: KnowledgeStage(rt), Required: false},
		pipeline.Registration{Stage: SynthesizeStage(rt), Required: true},
	)
}
