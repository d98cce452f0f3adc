package reports_test

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/sampoursoltan11/paddock-sub000/pkg/lifecycle"
	"github.com/sampoursoltan11/paddock-sub000/pkg/storage"
)

// memBlobs is an in-memory storage.System for builder tests.
type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte)}
}

func (m *memBlobs) Start(*lifecycle.Coordinator) error { return nil }

func (m *memBlobs) Upload(_ context.Context, key string, reader io.Reader, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blobs[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memBlobs) Download(_ context.Context, key string) (*storage.DownloadResult, error) {
	m.mu.Lock()
	data, ok := m.blobs[key]
	m.mu.Unlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.DownloadResult{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
	}, nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *memBlobs) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *memBlobs) List(context.Context, string, string, int32) (*storage.ListResult, error) {
	return &storage.ListResult{Items: []storage.ItemMeta{}}, nil
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func checkedState(t *testing.T, id uuid.UUID, checkIssues, visualIssues []compliance.Issue) *pipeline.WorkflowState {
	t.Helper()

	now := time.Now().UTC()
	results := map[string]*pipeline.StageRecord{
		pipeline.StageComplianceCheck: {
			Status: pipeline.StatusCompleted,
			Output: mustMarshal(t, map[string]any{"issues": checkIssues}),
		},
	}

	if visualIssues != nil {
		results[pipeline.StageVisualAnalysis] = &pipeline.StageRecord{
			Status: pipeline.StatusCompleted,
			Output: mustMarshal(t, map[string]any{
				"images": []map[string]any{
					{"page_number": 1, "issues": visualIssues},
				},
			}),
		}
	}

	return &pipeline.WorkflowState{
		DocumentID:    id,
		OverallStatus: pipeline.StatusProcessing,
		StartedAt:     now,
		UpdatedAt:     now,
		StageResults:  results,
	}
}

func TestBuildRequiresCompletedComplianceCheck(t *testing.T) {
	store := pipeline.NewMemStore()
	builder := reports.NewBuilder(store, newMemBlobs(), slog.New(slog.DiscardHandler))

	id := uuid.New()
	state := &pipeline.WorkflowState{
		DocumentID: id,
		StageResults: map[string]*pipeline.StageRecord{
			pipeline.StageComplianceCheck: {Status: pipeline.StatusProcessing},
		},
	}

	_, err := builder.Build(context.Background(), id, state)
	if !errors.Is(err, pipeline.ErrIncompleteWorkflow) {
		t.Errorf("build: got %v, want ErrIncompleteWorkflow", err)
	}
}

func TestBuildFlattensComplianceAndVisualIssues(t *testing.T) {
	store := pipeline.NewMemStore()
	blobs := newMemBlobs()
	builder := reports.NewBuilder(store, blobs, slog.New(slog.DiscardHandler))

	id := uuid.New()
	state := checkedState(t, id,
		[]compliance.Issue{
			{ID: "rule-1", Severity: compliance.SeverityHigh, Message: "missing section"},
		},
		[]compliance.Issue{
			{ID: "visual-p1-1", Severity: compliance.SeverityLow, Message: "blurry logo"},
		},
	)

	report, err := builder.Build(context.Background(), id, state)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if len(report.Issues) != 2 {
		t.Fatalf("issues: got %d, want 2", len(report.Issues))
	}
	if report.OverallStatus != compliance.StatusWarning {
		t.Errorf("status: got %s, want %s", report.OverallStatus, compliance.StatusWarning)
	}
	if report.Summary.TotalIssues != 2 || report.Summary.HighIssues != 1 || report.Summary.LowIssues != 1 {
		t.Errorf("summary: got %+v", report.Summary)
	}

	if len(report.ArtifactKeys) != 1 {
		t.Fatalf("artifact keys: got %v", report.ArtifactKeys)
	}
	if ok, _ := blobs.Exists(context.Background(), report.ArtifactKeys[0]); !ok {
		t.Error("rendered artifact missing from storage")
	}

	// The report must be durably persisted, not just returned.
	stored, found, err := store.Report(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("stored report: found=%v err=%v", found, err)
	}
	if stored.Summary.TotalIssues != 2 {
		t.Errorf("stored summary: got %+v", stored.Summary)
	}
}

func TestBuildSkipsIncompleteVisualAnalysis(t *testing.T) {
	store := pipeline.NewMemStore()
	builder := reports.NewBuilder(store, newMemBlobs(), slog.New(slog.DiscardHandler))

	id := uuid.New()
	state := checkedState(t, id, []compliance.Issue{
		{ID: "rule-1", Severity: compliance.SeverityMedium, Message: "m"},
	}, nil)
	state.StageResults[pipeline.StageVisualAnalysis] = &pipeline.StageRecord{
		Status: pipeline.StatusFailed,
		Error:  "vision provider unavailable",
	}

	report, err := builder.Build(context.Background(), id, state)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if len(report.Issues) != 1 {
		t.Errorf("issues: got %d, want 1", len(report.Issues))
	}
	if report.OverallStatus != compliance.StatusPassed {
		t.Errorf("status: got %s, want %s", report.OverallStatus, compliance.StatusPassed)
	}
}

func TestBuildIsWriteOnce(t *testing.T) {
	store := pipeline.NewMemStore()
	builder := reports.NewBuilder(store, newMemBlobs(), slog.New(slog.DiscardHandler))

	id := uuid.New()
	state := checkedState(t, id, []compliance.Issue{
		{ID: "rule-1", Severity: compliance.SeverityCritical, Message: "m"},
	}, nil)

	first, err := builder.Build(context.Background(), id, state)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	// A second build against different state returns the persisted report.
	second, err := builder.Build(context.Background(), id, checkedState(t, id, nil, nil))
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}

	if second.Summary.TotalIssues != first.Summary.TotalIssues {
		t.Errorf("report mutated: got %+v, want %+v", second.Summary, first.Summary)
	}
	if second.OverallStatus != compliance.StatusFailed {
		t.Errorf("status: got %s, want %s", second.OverallStatus, compliance.StatusFailed)
	}
}
