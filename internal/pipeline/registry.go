package pipeline

import "fmt"

// Canonical stage names for the document compliance pipeline. Order of
// execution is defined by registration, not by these constants.
const (
	StageContentExtraction = "content-extraction"
	StageVisualAnalysis    = "visual-analysis"
	StageReferenceLookup   = "reference-lookup"
	StageComplianceCheck   = "compliance-check"
	StageKnowledgeIndexing = "knowledge-indexing"
	StageReportSynthesis   = "report-synthesis"
)

// Registration binds a stage to its failure policy. Required stages gate
// overall success; optional stages never abort the pipeline on failure.
type Registration struct {
	Stage    Stage
	Required bool
}

// Registry is an ordered, immutable list of stage registrations. Order
// defines execution order and dependency availability: a stage may only
// depend on outputs of stages registered earlier.
type Registry struct {
	stages []Registration
	byName map[string]Registration
}

// NewRegistry creates a Registry from ordered registrations. Fails on
// empty or duplicate stage names.
func NewRegistry(registrations ...Registration) (*Registry, error) {
	if len(registrations) == 0 {
		return nil, fmt.Errorf("registry requires at least one stage")
	}

	byName := make(map[string]Registration, len(registrations))
	for _, reg := range registrations {
		name := reg.Stage.Name()
		if name == "" {
			return nil, fmt.Errorf("stage name cannot be empty")
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("duplicate stage name: %s", name)
		}
		byName[name] = reg
	}

	return &Registry{
		stages: registrations,
		byName: byName,
	}, nil
}

// Stages returns the registrations in execution order.
func (r *Registry) Stages() []Registration {
	return r.stages
}

// Names returns the stage names in execution order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.stages))
	for i, reg := range r.stages {
		names[i] = reg.Stage.Name()
	}
	return names
}

// Lookup returns the registration for a stage name.
// Returns ErrUnknownStage if the name was never registered.
func (r *Registry) Lookup(name string) (Registration, error) {
	reg, ok := r.byName[name]
	if !ok {
		return Registration{}, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	return reg, nil
}

// requiredComplete reports whether every required stage in state has
// completed.
func (r *Registry) requiredComplete(state *WorkflowState) bool {
	for _, reg := range r.stages {
		if !reg.Required {
			continue
		}
		rec, ok := state.StageResults[reg.Stage.Name()]
		if !ok || rec.Status != StatusCompleted {
			return false
		}
	}
	return true
}
