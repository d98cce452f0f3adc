package reports

import (
	"html/template"
	"io"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Compliance Report — {{.DocumentID}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; }
.status { display: inline-block; padding: 0.2rem 0.6rem; border-radius: 0.3rem; font-weight: 600; }
.status.passed { background: #d4edda; color: #155724; }
.status.warning { background: #fff3cd; color: #856404; }
.status.failed { background: #f8d7da; color: #721c24; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #ddd; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #f5f5f5; }
.sev-critical { color: #721c24; font-weight: 600; }
.sev-high { color: #856404; font-weight: 600; }
.summary { margin-top: 0.5rem; color: #555; }
</style>
</head>
<body>
<h1>Compliance Report</h1>
<p>Document <code>{{.DocumentID}}</code> &middot; generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
<p>Status: <span class="status {{.OverallStatus}}">{{.OverallStatus}}</span></p>
<p class="summary">{{.Summary.TotalIssues}} issue(s):
{{.Summary.CriticalIssues}} critical, {{.Summary.HighIssues}} high,
{{.Summary.MediumIssues}} medium, {{.Summary.LowIssues}} low.</p>
{{if .Issues}}
<table>
<tr><th>Severity</th><th>Category</th><th>Location</th><th>Message</th><th>Suggestion</th></tr>
{{range .Issues}}
<tr>
<td class="sev-{{.Severity}}">{{.Severity}}</td>
<td>{{.Category}}</td>
<td>{{.Location}}</td>
<td>{{.Message}}</td>
<td>{{.Suggestion}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No issues found.</p>
{{end}}
</body>
</html>
`))

// renderHTML writes the report as a standalone HTML document.
func renderHTML(w io.Writer, report *compliance.Report) error {
	return reportTemplate.Execute(w, report)
}
