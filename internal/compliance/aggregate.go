package compliance

// Aggregate computes the overall verdict and severity summary for a set
// of issues. A single critical issue fails the document regardless of
// how many lower-severity issues exist; otherwise any high issue yields
// a warning; otherwise the document passes.
func Aggregate(issues []Issue) (Status, Summary) {
	summary := Summary{TotalIssues: len(issues)}

	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			summary.CriticalIssues++
		case SeverityHigh:
			summary.HighIssues++
		case SeverityMedium:
			summary.MediumIssues++
		case SeverityLow:
			summary.LowIssues++
		}
	}

	switch {
	case summary.CriticalIssues > 0:
		return StatusFailed, summary
	case summary.HighIssues > 0:
		return StatusWarning, summary
	default:
		return StatusPassed, summary
	}
}
