// Package compliance provides the compliance issue model, the final
// report record, and the pure aggregation policy that turns a set of
// issues into an overall verdict.
package compliance

import (
	"time"

	"github.com/google/uuid"
)

// Severity ranks how serious a compliance issue is.
type Severity string

// Issue severities, most serious first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Status is the overall verdict for a document.
type Status string

// Report verdicts.
const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// Issue is a single compliance finding surfaced by the compliance-check
// or visual-analysis stages.
type Issue struct {
	ID         string   `json:"id"`
	Severity   Severity `json:"severity"`
	Category   string   `json:"category"`
	Message    string   `json:"message"`
	Location   string   `json:"location,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Confidence float64  `json:"confidence"`
	RuleID     string   `json:"rule_id,omitempty"`
}

// Summary tallies issue counts per severity.
type Summary struct {
	TotalIssues    int `json:"total_issues"`
	CriticalIssues int `json:"critical_issues"`
	HighIssues     int `json:"high_issues"`
	MediumIssues   int `json:"medium_issues"`
	LowIssues      int `json:"low_issues"`
}

// Report is the derived, immutable final verdict for a document. It is
// written exactly once, after the pipeline reaches a terminal state.
type Report struct {
	DocumentID    uuid.UUID `json:"document_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	OverallStatus Status    `json:"overall_status"`
	Issues        []Issue   `json:"issues"`
	Summary       Summary   `json:"summary"`
	ArtifactKeys  []string  `json:"artifact_keys,omitempty"`
}
