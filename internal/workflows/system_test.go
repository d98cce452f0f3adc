package workflows_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/internal/reports"
	"github.com/sampoursoltan11/paddock-sub000/internal/workflows"
	"github.com/sampoursoltan11/paddock-sub000/pkg/lifecycle"
	"github.com/sampoursoltan11/paddock-sub000/pkg/storage"
)

// fakeBlobs is an in-memory storage.System for artifact assertions.
type fakeBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
	types map[string]string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{
		blobs: make(map[string][]byte),
		types: make(map[string]string),
	}
}

func (f *fakeBlobs) Start(*lifecycle.Coordinator) error { return nil }

func (f *fakeBlobs) Upload(_ context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBlobs) Download(_ context.Context, key string) (*storage.DownloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.DownloadResult{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentType:   f.types[key],
		ContentLength: int64(len(data)),
	}, nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(f.blobs, key)
	return nil
}

func (f *fakeBlobs) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok, nil
}

func (f *fakeBlobs) List(context.Context, string, string, int32) (*storage.ListResult, error) {
	return &storage.ListResult{Items: []storage.ItemMeta{}}, nil
}

func buildSystem(
	t *testing.T,
	regs ...pipeline.Registration,
) (workflows.System, pipeline.Store, *fakeBlobs) {
	t.Helper()

	if len(regs) == 0 {
		regs = []pipeline.Registration{
			{
				Stage: pipeline.NewStage("alpha", func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
					return map[string]string{"ok": "yes"}, nil
				}),
				Required: true,
			},
			{
				Stage: pipeline.NewStage("omega", func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
					return nil, nil
				}),
				Required: true,
			},
		}
	}

	registry, err := pipeline.NewRegistry(regs...)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	store := pipeline.NewMemStore()
	orchestrator := pipeline.NewOrchestrator(registry, store, logger, time.Minute)

	blobs := newFakeBlobs()
	return workflows.New(orchestrator, store, blobs, 2, logger), store, blobs
}

func waitTerminal(t *testing.T, store pipeline.Store, id uuid.UUID) *pipeline.WorkflowState {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state, found, err := store.State(context.Background(), id)
		if err != nil {
			t.Fatalf("load state: %v", err)
		}
		if found && state.OverallStatus.Terminal() {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("workflow never reached a terminal status")
	return nil
}

func TestStartWorkflowRunsToCompletion(t *testing.T) {
	sys, store, _ := buildSystem(t)
	id := uuid.New()

	state, err := sys.StartWorkflow(context.Background(), id)
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	if state.OverallStatus == pipeline.StatusCompleted {
		t.Error("start returned an already-completed state")
	}

	final := waitTerminal(t, store, id)
	if final.OverallStatus != pipeline.StatusCompleted {
		t.Errorf("overall status: got %s, want %s", final.OverallStatus, pipeline.StatusCompleted)
	}
	for name, rec := range final.StageResults {
		if rec.Status != pipeline.StatusCompleted {
			t.Errorf("stage %s: got %s, want %s", name, rec.Status, pipeline.StatusCompleted)
		}
	}
}

func TestStartWorkflowTwiceFailsAlreadyStarted(t *testing.T) {
	sys, store, _ := buildSystem(t)
	id := uuid.New()

	if _, err := sys.StartWorkflow(context.Background(), id); err != nil {
		t.Fatalf("first start: %v", err)
	}
	waitTerminal(t, store, id)

	_, err := sys.StartWorkflow(context.Background(), id)
	if !errors.Is(err, pipeline.ErrAlreadyStarted) {
		t.Errorf("second start: got %v, want ErrAlreadyStarted", err)
	}
}

func TestStateUnknownWorkflowFailsNotFound(t *testing.T) {
	sys, _, _ := buildSystem(t)

	_, err := sys.State(context.Background(), uuid.New())
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("state: got %v, want ErrNotFound", err)
	}
}

func TestResumeUnknownWorkflowFailsNotFound(t *testing.T) {
	sys, _, _ := buildSystem(t)

	err := sys.Resume(context.Background(), uuid.New())
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("resume: got %v, want ErrNotFound", err)
	}
}

func TestReportUnknownWorkflowFailsNotFound(t *testing.T) {
	sys, _, _ := buildSystem(t)

	_, err := sys.Report(context.Background(), uuid.New())
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("report: got %v, want ErrNotFound", err)
	}
}

func TestReportBeforeSynthesisFailsIncomplete(t *testing.T) {
	sys, store, _ := buildSystem(t)
	id := uuid.New()

	if _, err := sys.StartWorkflow(context.Background(), id); err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	waitTerminal(t, store, id)

	_, err := sys.Report(context.Background(), id)
	if !errors.Is(err, pipeline.ErrIncompleteWorkflow) {
		t.Errorf("report: got %v, want ErrIncompleteWorkflow", err)
	}
}

func TestReportReturnsPersistedReport(t *testing.T) {
	sys, store, _ := buildSystem(t)
	id := uuid.New()

	if _, err := sys.StartWorkflow(context.Background(), id); err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	waitTerminal(t, store, id)

	want := &compliance.Report{
		DocumentID:    id,
		OverallStatus: compliance.StatusPassed,
	}
	if err := store.PutReport(context.Background(), id, want); err != nil {
		t.Fatalf("put report: %v", err)
	}

	got, err := sys.Report(context.Background(), id)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if got.DocumentID != id || got.OverallStatus != compliance.StatusPassed {
		t.Errorf("report: got %+v", got)
	}
}

func TestResumeContinuesFailedWorkflow(t *testing.T) {
	stage := pipeline.NewStage("flaky", func(context.Context, uuid.UUID, pipeline.Outputs) (any, error) {
		return nil, errors.New("transient fault")
	})
	sys, store, _ := buildSystem(t, pipeline.Registration{Stage: stage, Required: true})
	id := uuid.New()

	if _, err := sys.StartWorkflow(context.Background(), id); err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	final := waitTerminal(t, store, id)
	if final.OverallStatus != pipeline.StatusFailed {
		t.Fatalf("overall status: got %s, want %s", final.OverallStatus, pipeline.StatusFailed)
	}

	// A terminal workflow accepts resume without scheduling new work.
	if err := sys.Resume(context.Background(), id); err != nil {
		t.Fatalf("resume: %v", err)
	}

	state, err := sys.State(context.Background(), id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.OverallStatus != pipeline.StatusFailed {
		t.Errorf("overall status after resume: got %s, want %s", state.OverallStatus, pipeline.StatusFailed)
	}
}

func TestReportArtifactStreamsRenderedHTML(t *testing.T) {
	sys, store, blobs := buildSystem(t)
	id := uuid.New()

	if _, err := sys.StartWorkflow(context.Background(), id); err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	waitTerminal(t, store, id)

	html := []byte("<html><body>passed</body></html>")
	err := blobs.Upload(context.Background(), reports.ArtifactKey(id), bytes.NewReader(html), "text/html")
	if err != nil {
		t.Fatalf("upload artifact: %v", err)
	}

	result, err := sys.ReportArtifact(context.Background(), id)
	if err != nil {
		t.Fatalf("report artifact: %v", err)
	}
	defer result.Body.Close()

	if result.ContentType != "text/html" {
		t.Errorf("content type: got %s, want text/html", result.ContentType)
	}
	body, err := io.ReadAll(result.Body)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.Equal(body, html) {
		t.Errorf("artifact body: got %s", body)
	}
}

func TestReportArtifactBeforeSynthesisFailsIncomplete(t *testing.T) {
	sys, store, _ := buildSystem(t)
	id := uuid.New()

	if _, err := sys.StartWorkflow(context.Background(), id); err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	waitTerminal(t, store, id)

	_, err := sys.ReportArtifact(context.Background(), id)
	if !errors.Is(err, pipeline.ErrIncompleteWorkflow) {
		t.Errorf("report artifact: got %v, want ErrIncompleteWorkflow", err)
	}
}

func TestReportArtifactUnknownWorkflowFailsNotFound(t *testing.T) {
	sys, _, _ := buildSystem(t)

	_, err := sys.ReportArtifact(context.Background(), uuid.New())
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("report artifact: got %v, want ErrNotFound", err)
	}
}

func TestManyWorkflowsShareLocksAndComplete(t *testing.T) {
	sys, store, _ := buildSystem(t)

	ids := make([]uuid.UUID, 80)
	for i := range ids {
		ids[i] = uuid.New()
		if _, err := sys.StartWorkflow(context.Background(), ids[i]); err != nil {
			t.Fatalf("start workflow %d: %v", i, err)
		}
	}

	for i, id := range ids {
		final := waitTerminal(t, store, id)
		if final.OverallStatus != pipeline.StatusCompleted {
			t.Errorf("workflow %d: got %s, want %s", i, final.OverallStatus, pipeline.StatusCompleted)
		}
	}
}
