package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// spyStage counts invocations and delegates to a configurable run func.
type spyStage struct {
	name  string
	calls atomic.Int32
	run   func(ctx context.Context, documentID uuid.UUID, prior pipeline.Outputs) (any, error)
}

func (s *spyStage) Name() string { return s.name }

func (s *spyStage) Run(
	ctx context.Context,
	documentID uuid.UUID,
	prior pipeline.Outputs,
) (any, error) {
	s.calls.Add(1)
	if s.run != nil {
		return s.run(ctx, documentID, prior)
	}
	return map[string]string{"stage": s.name}, nil
}

func newSpy(name string) *spyStage {
	return &spyStage{name: name}
}

func buildOrchestrator(
	t *testing.T,
	store pipeline.Store,
	timeout time.Duration,
	regs ...pipeline.Registration,
) *pipeline.Orchestrator {
	t.Helper()

	registry, err := pipeline.NewRegistry(regs...)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	return pipeline.NewOrchestrator(registry, store, discardLogger(), timeout)
}

func TestStartInitializesAllStagesPending(t *testing.T) {
	store := pipeline.NewMemStore()
	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: newSpy("alpha"), Required: true},
		pipeline.Registration{Stage: newSpy("beta"), Required: false},
	)

	id := uuid.New()
	state, err := orch.Start(context.Background(), id)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if state.OverallStatus != pipeline.StatusPending {
		t.Errorf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusPending)
	}
	if len(state.StageResults) != 2 {
		t.Fatalf("stage results: got %d, want 2", len(state.StageResults))
	}
	for name, rec := range state.StageResults {
		if rec.Status != pipeline.StatusPending {
			t.Errorf("stage %s: got %s, want %s", name, rec.Status, pipeline.StatusPending)
		}
	}
}

func TestStartTwiceFailsAlreadyStarted(t *testing.T) {
	store := pipeline.NewMemStore()
	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: newSpy("alpha"), Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	_, err := orch.Start(context.Background(), id)
	if !errors.Is(err, pipeline.ErrAlreadyStarted) {
		t.Errorf("second start: got %v, want ErrAlreadyStarted", err)
	}
}

func TestRunUnknownWorkflowFailsNotFound(t *testing.T) {
	store := pipeline.NewMemStore()
	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: newSpy("alpha"), Required: true},
	)

	_, err := orch.Run(context.Background(), uuid.New())
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("run: got %v, want ErrNotFound", err)
	}
}

func TestStateUnknownWorkflowFailsNotFound(t *testing.T) {
	store := pipeline.NewMemStore()
	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: newSpy("alpha"), Required: true},
	)

	_, err := orch.State(context.Background(), uuid.New())
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("state: got %v, want ErrNotFound", err)
	}
}

func TestRunExecutesStagesInOrder(t *testing.T) {
	store := pipeline.NewMemStore()

	var order []string
	record := func(name string) *spyStage {
		s := newSpy(name)
		s.run = func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
			order = append(order, name)
			return map[string]string{"stage": name}, nil
		}
		return s
	}

	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: record("alpha"), Required: true},
		pipeline.Registration{Stage: record("beta"), Required: false},
		pipeline.Registration{Stage: record("gamma"), Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	state, err := orch.Run(context.Background(), id)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []string{"alpha", "beta", "gamma"}
	if len(order) != len(want) {
		t.Fatalf("execution order: got %v, want %v", order, want)
	}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("execution order: got %v, want %v", order, want)
		}
	}

	if state.OverallStatus != pipeline.StatusCompleted {
		t.Errorf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusCompleted)
	}
	if state.CompletedAt == nil {
		t.Error("completed workflow missing CompletedAt")
	}
	for name, rec := range state.StageResults {
		if rec.Status != pipeline.StatusCompleted {
			t.Errorf("stage %s: got %s, want %s", name, rec.Status, pipeline.StatusCompleted)
		}
		if len(rec.Output) == 0 {
			t.Errorf("stage %s: missing output", name)
		}
	}
}

func TestStagesReceiveUpstreamOutputs(t *testing.T) {
	store := pipeline.NewMemStore()

	producer := newSpy("producer")
	producer.run = func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
		return map[string]int{"value": 42}, nil
	}

	var got int
	consumer := newSpy("consumer")
	consumer.run = func(_ context.Context, _ uuid.UUID, prior pipeline.Outputs) (any, error) {
		payload, err := pipeline.Output[map[string]int](prior, "producer")
		if err != nil {
			return nil, err
		}
		got = payload["value"]
		return map[string]bool{"ok": true}, nil
	}

	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: producer, Required: true},
		pipeline.Registration{Stage: consumer, Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := orch.Run(context.Background(), id); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got != 42 {
		t.Errorf("consumer received: got %d, want 42", got)
	}
}

func TestRequiredFailureAbortsPipeline(t *testing.T) {
	store := pipeline.NewMemStore()

	boom := newSpy("boom")
	boom.run = func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
		return nil, errors.New("stage exploded")
	}
	after := newSpy("after")

	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: boom, Required: true},
		pipeline.Registration{Stage: after, Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	state, err := orch.Run(context.Background(), id)
	if !errors.Is(err, pipeline.ErrStageFailed) {
		t.Fatalf("run: got %v, want ErrStageFailed", err)
	}

	if state.OverallStatus != pipeline.StatusFailed {
		t.Errorf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusFailed)
	}
	if state.Error == "" {
		t.Error("failed workflow missing error context")
	}
	if rec := state.StageResults["boom"]; rec.Status != pipeline.StatusFailed || rec.Error == "" {
		t.Errorf("boom record: got status %s error %q", rec.Status, rec.Error)
	}
	if after.calls.Load() != 0 {
		t.Error("downstream stage ran after required failure")
	}
	if rec := state.StageResults["after"]; rec.Status != pipeline.StatusPending {
		t.Errorf("after record: got %s, want %s", rec.Status, pipeline.StatusPending)
	}
}

func TestOptionalFailureContinuesPipeline(t *testing.T) {
	store := pipeline.NewMemStore()

	flaky := newSpy("flaky")
	flaky.run = func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
		return nil, errors.New("no luck")
	}

	var sawFlaky bool
	after := newSpy("after")
	after.run = func(_ context.Context, _ uuid.UUID, prior pipeline.Outputs) (any, error) {
		sawFlaky = prior.Has("flaky")
		return map[string]bool{"ok": true}, nil
	}

	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: flaky, Required: false},
		pipeline.Registration{Stage: after, Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	state, err := orch.Run(context.Background(), id)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if state.OverallStatus != pipeline.StatusCompleted {
		t.Errorf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusCompleted)
	}
	if rec := state.StageResults["flaky"]; rec.Status != pipeline.StatusFailed || rec.Error == "" {
		t.Errorf("flaky record: got status %s error %q", rec.Status, rec.Error)
	}
	if sawFlaky {
		t.Error("downstream observed output for a failed optional stage")
	}
}

func TestMissingDependencyFailsFast(t *testing.T) {
	store := pipeline.NewMemStore()

	flaky := newSpy("flaky")
	flaky.run = func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
		return nil, errors.New("no luck")
	}

	strict := newSpy("strict")
	strict.run = func(_ context.Context, _ uuid.UUID, prior pipeline.Outputs) (any, error) {
		if _, err := prior.Raw("flaky"); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	}

	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: flaky, Required: false},
		pipeline.Registration{Stage: strict, Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	state, err := orch.Run(context.Background(), id)
	if !errors.Is(err, pipeline.ErrStageFailed) {
		t.Fatalf("run: got %v, want ErrStageFailed", err)
	}

	rec := state.StageResults["strict"]
	if rec.Status != pipeline.StatusFailed {
		t.Errorf("strict record: got %s, want %s", rec.Status, pipeline.StatusFailed)
	}
}

func TestRerunSkipsCompletedStages(t *testing.T) {
	store := pipeline.NewMemStore()

	first := newSpy("first")

	attempts := 0
	second := newSpy("second")
	second.run = func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return map[string]bool{"ok": true}, nil
	}

	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: first, Required: true},
		pipeline.Registration{Stage: second, Required: false},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := orch.Run(context.Background(), id); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The optional failure did not block completion, so a second run is a
	// no-op on a terminal workflow: nothing re-executes.
	state, err := orch.Run(context.Background(), id)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.calls.Load() != 1 {
		t.Errorf("first stage calls: got %d, want 1", first.calls.Load())
	}
	if attempts != 1 {
		t.Errorf("second stage attempts: got %d, want 1", attempts)
	}
	if state.OverallStatus != pipeline.StatusCompleted {
		t.Errorf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusCompleted)
	}
}

func TestResumeAfterRequiredFailureSkipsCompletedWork(t *testing.T) {
	store := pipeline.NewMemStore()

	first := newSpy("first")

	attempts := 0
	gate := newSpy("gate")
	gate.run = func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return map[string]bool{"ok": true}, nil
	}

	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: first, Required: true},
		pipeline.Registration{Stage: gate, Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := orch.Run(context.Background(), id); !errors.Is(err, pipeline.ErrStageFailed) {
		t.Fatalf("first run: got %v, want ErrStageFailed", err)
	}

	// A terminal workflow does not re-execute without an explicit reset.
	state, err := orch.Run(context.Background(), id)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.calls.Load() != 1 {
		t.Errorf("first stage calls: got %d, want 1", first.calls.Load())
	}
	if attempts != 1 {
		t.Errorf("gate attempts: got %d, want 1", attempts)
	}
	if state.OverallStatus != pipeline.StatusFailed {
		t.Errorf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusFailed)
	}
}

func TestStageTimeoutNormalizedToErrTimeout(t *testing.T) {
	store := pipeline.NewMemStore()

	slow := newSpy("slow")
	slow.run = func(ctx context.Context, _ uuid.UUID, _ pipeline.Outputs) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return map[string]bool{"ok": true}, nil
		}
	}

	orch := buildOrchestrator(
		t, store, 20*time.Millisecond,
		pipeline.Registration{Stage: slow, Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	state, err := orch.Run(context.Background(), id)
	if !errors.Is(err, pipeline.ErrStageFailed) {
		t.Fatalf("run: got %v, want ErrStageFailed", err)
	}
	if !errors.Is(err, pipeline.ErrTimeout) {
		t.Fatalf("run: got %v, want wrapped ErrTimeout", err)
	}

	if state.OverallStatus != pipeline.StatusFailed {
		t.Errorf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusFailed)
	}
}

func TestRunOnTerminalWorkflowIsNoOp(t *testing.T) {
	store := pipeline.NewMemStore()

	only := newSpy("only")
	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: only, Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := orch.Run(context.Background(), id); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	before := only.calls.Load()
	state, err := orch.Run(context.Background(), id)
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}

	if only.calls.Load() != before {
		t.Error("terminal workflow re-executed a stage")
	}
	if state.OverallStatus != pipeline.StatusCompleted {
		t.Errorf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusCompleted)
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := pipeline.NewRegistry(
		pipeline.Registration{Stage: newSpy("dup"), Required: true},
		pipeline.Registration{Stage: newSpy("dup"), Required: false},
	)
	if err == nil {
		t.Error("duplicate registration should fail")
	}
}

func TestRegistryRejectsEmpty(t *testing.T) {
	if _, err := pipeline.NewRegistry(); err == nil {
		t.Error("empty registry should fail")
	}
}

func TestCancellationLeavesStageProcessing(t *testing.T) {
	store := pipeline.NewMemStore()
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alpha := newSpy("alpha")
	blocker := &spyStage{name: "blocker"}
	blocker.run = func(ctx context.Context, _ uuid.UUID, _ pipeline.Outputs) (any, error) {
		if blocker.calls.Load() == 1 {
			cancel()
			<-ctx.Done()
			return nil, fmt.Errorf("upload aborted: %w", ctx.Err())
		}
		return map[string]string{"stage": "blocker"}, nil
	}

	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: alpha, Required: true},
		pipeline.Registration{Stage: blocker, Required: true},
	)

	id := uuid.New()
	if _, err := orch.Start(context.Background(), id); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := orch.Run(runCtx, id); err == nil {
		t.Fatal("interrupted run should return an error")
	}

	state, found, err := store.State(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("load state: found=%v err=%v", found, err)
	}
	if state.OverallStatus != pipeline.StatusProcessing {
		t.Fatalf("overall status: got %s, want %s", state.OverallStatus, pipeline.StatusProcessing)
	}
	if rec := state.StageResults["blocker"]; rec.Status != pipeline.StatusProcessing {
		t.Fatalf("interrupted stage: got %s, want %s", rec.Status, pipeline.StatusProcessing)
	}
	if rec := state.StageResults["alpha"]; rec.Status != pipeline.StatusCompleted {
		t.Fatalf("completed stage regressed: got %s", rec.Status)
	}

	final, err := orch.Run(context.Background(), id)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if final.OverallStatus != pipeline.StatusCompleted {
		t.Errorf("overall status: got %s, want %s", final.OverallStatus, pipeline.StatusCompleted)
	}
	if got := alpha.calls.Load(); got != 1 {
		t.Errorf("completed stage re-executed: %d calls", got)
	}
	if got := blocker.calls.Load(); got != 2 {
		t.Errorf("interrupted stage: got %d calls, want 2", got)
	}
}

func TestResumeReattemptsInterruptedProcessingStage(t *testing.T) {
	store := pipeline.NewMemStore()
	alpha := newSpy("alpha")
	beta := newSpy("beta")
	orch := buildOrchestrator(
		t, store, 0,
		pipeline.Registration{Stage: alpha, Required: true},
		pipeline.Registration{Stage: beta, Required: true},
	)

	id := uuid.New()
	state, err := orch.Start(context.Background(), id)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// A crash mid-run leaves one stage completed and the next processing.
	now := time.Now().UTC()
	recA := state.StageResults["alpha"]
	recA.Status = pipeline.StatusCompleted
	recA.StartedAt = now
	recA.CompletedAt = &now
	recA.Output = json.RawMessage(`{"stage":"alpha"}`)
	recB := state.StageResults["beta"]
	recB.Status = pipeline.StatusProcessing
	recB.StartedAt = now
	state.OverallStatus = pipeline.StatusProcessing
	if err := store.PutState(context.Background(), id, state); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	final, err := orch.Run(context.Background(), id)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if final.OverallStatus != pipeline.StatusCompleted {
		t.Errorf("overall status: got %s, want %s", final.OverallStatus, pipeline.StatusCompleted)
	}
	if got := alpha.calls.Load(); got != 0 {
		t.Errorf("completed stage re-executed: %d calls", got)
	}
	if got := beta.calls.Load(); got != 1 {
		t.Errorf("interrupted stage: got %d calls, want 1", got)
	}
}
