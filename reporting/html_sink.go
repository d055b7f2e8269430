package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/templates"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

const htmlResultsFilename = "results.html"

const htmlResultsTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Harness Run {{.RunID}}</title>
<style>
body { font-family: monospace; margin: 2em; }
h1 { font-size: 1.2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
tr.pass td.status { color: #0a7d00; }
tr.fail td.status { color: #b00000; }
tr.skip td.status { color: #8a6d00; }
td.error { max-width: 48em; word-break: break-word; }
.summary { margin-bottom: 1em; }
</style>
</head>
<body>
<h1>Harness Run {{.RunID}}</h1>
<div class="summary">
Status: <strong>{{getOverallStatus .Stats}}</strong> &mdash;
Total: {{.Stats.Total}},
Passed: {{.Stats.Passed}},
Failed: {{.Stats.Failed}},
Skipped: {{.Stats.Skipped}} &mdash;
Duration: {{formatDuration .Duration}}
</div>
<table>
<tr><th>Suite</th><th>Runnable</th><th>Status</th><th>Duration</th><th>Retries</th><th>Error</th></tr>
{{range .Groups}}{{$suite := .Name}}{{range .Results}}
<tr class="{{getStatusClass .Status}}">
<td>{{$suite}}</td>
<td>{{.Title}}</td>
<td class="status">{{getStatusText .Status}}</td>
<td>{{formatDuration .Duration}}</td>
<td>{{.Retries}}</td>
<td class="error">{{with .Error}}{{.Error}}{{end}}</td>
</tr>
{{end}}{{end}}
</table>
</body>
</html>
`

// HTMLSink generates a self-contained HTML report of a run.
type HTMLSink struct {
	tmpl    *template.Template
	baseDir string
	results map[string][]*types.RunResult
}

// NewHTMLSink creates a new HTML sink.
func NewHTMLSink(baseDir string) (*HTMLSink, error) {
	tmpl, err := template.New("results").Funcs(templates.GetTemplateFunc()).Parse(htmlResultsTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return &HTMLSink{
		tmpl:    tmpl,
		baseDir: baseDir,
		results: make(map[string][]*types.RunResult),
	}, nil
}

// Consume collects run results for later HTML generation
func (s *HTMLSink) Consume(result *types.RunResult, runID string) error {
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// Complete generates the HTML report file for the run
func (s *HTMLSink) Complete(runID string) error {
	results := s.results[runID]

	var duration time.Duration
	for _, res := range results {
		duration += res.Duration
	}

	data := struct {
		RunID    string
		Stats    types.RunStats
		Duration time.Duration
		Groups   []suiteGroup
	}{
		RunID:    runID,
		Stats:    statsOf(results),
		Duration: duration,
		Groups:   groupBySuite(results),
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to format HTML: %w", err)
	}

	outputDir := RunDir(s.baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	htmlFile := filepath.Join(outputDir, htmlResultsFilename)
	if err := os.WriteFile(htmlFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}

	return nil
}
