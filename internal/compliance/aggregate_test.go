package compliance_test

import (
	"testing"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
)

func issuesOf(severities ...compliance.Severity) []compliance.Issue {
	issues := make([]compliance.Issue, len(severities))
	for i, severity := range severities {
		issues[i] = compliance.Issue{ID: "issue", Severity: severity}
	}
	return issues
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name       string
		issues     []compliance.Issue
		wantStatus compliance.Status
		wantTotals compliance.Summary
	}{
		{
			name:       "no issues passes",
			issues:     nil,
			wantStatus: compliance.StatusPassed,
			wantTotals: compliance.Summary{},
		},
		{
			name:       "single critical fails",
			issues:     issuesOf(compliance.SeverityCritical),
			wantStatus: compliance.StatusFailed,
			wantTotals: compliance.Summary{TotalIssues: 1, CriticalIssues: 1},
		},
		{
			name: "critical outranks everything",
			issues: issuesOf(
				compliance.SeverityLow,
				compliance.SeverityHigh,
				compliance.SeverityCritical,
				compliance.SeverityMedium,
			),
			wantStatus: compliance.StatusFailed,
			wantTotals: compliance.Summary{
				TotalIssues:    4,
				CriticalIssues: 1,
				HighIssues:     1,
				MediumIssues:   1,
				LowIssues:      1,
			},
		},
		{
			name:       "high without critical warns",
			issues:     issuesOf(compliance.SeverityHigh, compliance.SeverityLow),
			wantStatus: compliance.StatusWarning,
			wantTotals: compliance.Summary{TotalIssues: 2, HighIssues: 1, LowIssues: 1},
		},
		{
			name:       "medium and low still pass",
			issues:     issuesOf(compliance.SeverityMedium, compliance.SeverityLow, compliance.SeverityLow),
			wantStatus: compliance.StatusPassed,
			wantTotals: compliance.Summary{TotalIssues: 3, MediumIssues: 1, LowIssues: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, summary := compliance.Aggregate(tt.issues)

			if status != tt.wantStatus {
				t.Errorf("status: got %s, want %s", status, tt.wantStatus)
			}
			if summary != tt.wantTotals {
				t.Errorf("summary: got %+v, want %+v", summary, tt.wantTotals)
			}
		})
	}
}
