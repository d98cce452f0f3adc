// Package reports assembles and persists the final compliance report
// for a document from its workflow state.
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/pkg/storage"
)

// checkPayload is the structural shape of the compliance-check output the
// builder consumes. The producing stage may attach more fields; only the
// issue list matters here.
type checkPayload struct {
	Issues []compliance.Issue `json:"issues"`
}

// visualPayload is the structural shape of the visual-analysis output.
// Issues are flattened across all analyzed images.
type visualPayload struct {
	Images []struct {
		PageNumber int                `json:"page_number"`
		Issues     []compliance.Issue `json:"issues"`
	} `json:"images"`
}

// Builder turns a terminal workflow state into a persisted, immutable
// compliance report plus a rendered HTML artifact.
type Builder struct {
	store   pipeline.Store
	storage storage.System
	logger  *slog.Logger
}

// NewBuilder creates a report builder.
func NewBuilder(store pipeline.Store, blobs storage.System, logger *slog.Logger) *Builder {
	return &Builder{
		store:   store,
		storage: blobs,
		logger:  logger.With("system", "reports"),
	}
}

// Build assembles the compliance report for a document. Fails with
// ErrIncompleteWorkflow unless the compliance-check stage completed.
// Reports are write-once: if one already exists it is returned as-is,
// making Build idempotent under at-least-once stage re-invocation.
func (b *Builder) Build(
	ctx context.Context,
	documentID uuid.UUID,
	state *pipeline.WorkflowState,
) (*compliance.Report, error) {
	existing, found, err := b.store.Report(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if found {
		return existing, nil
	}

	issues, err := collectIssues(state)
	if err != nil {
		return nil, err
	}

	status, summary := compliance.Aggregate(issues)

	report := &compliance.Report{
		DocumentID:    documentID,
		GeneratedAt:   time.Now().UTC(),
		OverallStatus: status,
		Issues:        issues,
		Summary:       summary,
	}

	artifactKey, err := b.renderArtifact(ctx, report)
	if err != nil {
		// The report data is still valid without its rendering.
		b.logger.Warn("report artifact rendering failed", "document_id", documentID, "error", err)
	} else {
		report.ArtifactKeys = []string{artifactKey}
	}

	if err := b.store.PutReport(ctx, documentID, report); err != nil {
		return nil, err
	}

	b.logger.Info(
		"report generated",
		"document_id", documentID,
		"status", report.OverallStatus,
		"issues", report.Summary.TotalIssues,
	)
	return report, nil
}

// collectIssues concatenates compliance-check issues with flattened
// per-image visual-analysis issues. The compliance-check stage must have
// completed; visual-analysis contributes only when it did.
func collectIssues(state *pipeline.WorkflowState) ([]compliance.Issue, error) {
	check, err := state.Stage(pipeline.StageComplianceCheck)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s never registered",
			pipeline.ErrIncompleteWorkflow,
			pipeline.StageComplianceCheck,
		)
	}
	if check.Status != pipeline.StatusCompleted {
		return nil, fmt.Errorf(
			"%w: %s is %s",
			pipeline.ErrIncompleteWorkflow,
			pipeline.StageComplianceCheck,
			check.Status,
		)
	}

	issues := make([]compliance.Issue, 0)

	var checked checkPayload
	if err := decodeRecord(check, &checked); err != nil {
		return nil, fmt.Errorf("decode %s output: %w", pipeline.StageComplianceCheck, err)
	}
	issues = append(issues, checked.Issues...)

	if visual, err := state.Stage(pipeline.StageVisualAnalysis); err == nil &&
		visual.Status == pipeline.StatusCompleted {
		var analyzed visualPayload
		if err := decodeRecord(visual, &analyzed); err != nil {
			return nil, fmt.Errorf("decode %s output: %w", pipeline.StageVisualAnalysis, err)
		}
		for _, image := range analyzed.Images {
			issues = append(issues, image.Issues...)
		}
	}

	return issues, nil
}

func decodeRecord(rec *pipeline.StageRecord, target any) error {
	if len(rec.Output) == 0 {
		return nil
	}
	return json.Unmarshal(rec.Output, target)
}

// ArtifactKey returns the blob key of the rendered HTML report.
func ArtifactKey(documentID uuid.UUID) string {
	return fmt.Sprintf("workflows/%s/report.html", documentID)
}

func (b *Builder) renderArtifact(ctx context.Context, report *compliance.Report) (string, error) {
	var buf bytes.Buffer
	if err := renderHTML(&buf, report); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	key := ArtifactKey(report.DocumentID)
	if err := b.storage.Upload(ctx, key, &buf, "text/html"); err != nil {
		return "", fmt.Errorf("upload report artifact: %w", err)
	}

	return key, nil
}
