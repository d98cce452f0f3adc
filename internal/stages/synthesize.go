package stages

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
)

// SynthesisOutput is the report-synthesis stage result. The report
// itself is persisted by the builder; this output records where it
// landed and its headline numbers.
type SynthesisOutput struct {
	ReportStatus compliance.Status `json:"report_status"`
	TotalIssues  int               `json:"total_issues"`
	ArtifactKeys []string          `json:"artifact_keys,omitempty"`
}

// SynthesizeStage returns the report-synthesis stage. It reloads the
// persisted workflow state, which by this point carries every prior
// stage's durable record, and hands it to the report builder.
func SynthesizeStage(rt *Runtime) pipeline.Stage {
	return pipeline.NewStage(
		pipeline.StageReportSynthesis,
		func(ctx context.Context, documentID uuid.UUID, _ pipeline.Outputs) (any, error) {
			state, found, err := rt.Store.State(ctx, documentID)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("%w: workflow %s", pipeline.ErrNotFound, documentID)
			}

			report, err := rt.Reports.Build(ctx, documentID, state)
			if err != nil {
				return nil, err
			}

			return SynthesisOutput{
				ReportStatus: report.OverallStatus,
				TotalIssues:  report.Summary.TotalIssues,
				ArtifactKeys: report.ArtifactKeys,
			}, nil
		},
	)
}
