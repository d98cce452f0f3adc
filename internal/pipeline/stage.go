package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Stage is the uniform contract every analysis stage implements. A stage
// must be a pure function of its inputs plus whatever external service it
// calls; it never mutates workflow state directly. Side effects such as
// writing intermediate artifacts must be idempotent, since the
// orchestrator re-invokes a stage that was left processing by a crashed
// run.
type Stage interface {
	// Name returns the stage's registered name.
	Name() string
	// Run executes the stage for a document, reading the outputs of
	// completed prior stages. The returned output must be JSON-serializable.
	Run(ctx context.Context, documentID uuid.UUID, prior Outputs) (any, error)
}

// RunFunc adapts a function to the Stage interface.
type RunFunc func(ctx context.Context, documentID uuid.UUID, prior Outputs) (any, error)

type funcStage struct {
	name string
	run  RunFunc
}

// NewStage creates a Stage from a name and a run function.
func NewStage(name string, run RunFunc) Stage {
	return &funcStage{name: name, run: run}
}

func (s *funcStage) Name() string {
	return s.name
}

func (s *funcStage) Run(ctx context.Context, documentID uuid.UUID, prior Outputs) (any, error) {
	return s.run(ctx, documentID, prior)
}

// Outputs is a read-only view over the outputs of completed stages,
// addressed by stage name. Requesting a stage that has not completed is
// a contract violation and fails fast rather than returning empty data.
type Outputs struct {
	outputs map[string]json.RawMessage
}

// NewOutputs creates an Outputs view over raw stage outputs.
// Used directly only by tests; the orchestrator builds views from state.
func NewOutputs(outputs map[string]json.RawMessage) Outputs {
	if outputs == nil {
		outputs = make(map[string]json.RawMessage)
	}
	return Outputs{outputs: outputs}
}

// Has reports whether the named stage completed and produced an output.
func (o Outputs) Has(name string) bool {
	_, ok := o.outputs[name]
	return ok
}

// Raw returns the named stage's output as raw JSON. Returns
// ErrMissingDependency if the stage has not completed.
func (o Outputs) Raw(name string) (json.RawMessage, error) {
	raw, ok := o.outputs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, name)
	}
	return raw, nil
}

// Output decodes the named stage's output into T. Returns
// ErrMissingDependency if the stage has not completed.
func Output[T any](o Outputs, name string) (T, error) {
	var result T

	raw, err := o.Raw(name)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("decode %s output: %w", name, err)
	}

	return result, nil
}
