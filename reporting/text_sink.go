package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum-optimism/infra/op-harness/ui"
)

// TextSummarySink writes a plain-text tree summary of a run to summary.log.
type TextSummarySink struct {
	baseDir string
	results map[string][]*types.RunResult
}

// NewTextSummarySink creates a new text summary sink.
func NewTextSummarySink(baseDir string) *TextSummarySink {
	return &TextSummarySink{
		baseDir: baseDir,
		results: make(map[string][]*types.RunResult),
	}
}

// Consume collects run results for later summary generation
func (s *TextSummarySink) Consume(result *types.RunResult, runID string) error {
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// Complete generates the text summary file for the run
func (s *TextSummarySink) Complete(runID string) error {
	results := s.results[runID]

	outputDir := RunDir(s.baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content := FormatSummary(runID, results)

	summaryFile := filepath.Join(outputDir, "summary.log")
	if err := os.WriteFile(summaryFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}

	return nil
}

// FormatSummary renders the run results as a suite tree with per-suite stats.
func FormatSummary(runID string, results []*types.RunResult) string {
	var sb strings.Builder

	stats := statsOf(results)
	sb.WriteString(fmt.Sprintf("Run %s\n", runID))
	sb.WriteString(fmt.Sprintf("Total: %d, Passed: %d, Failed: %d, Skipped: %d\n\n",
		stats.Total, stats.Passed, stats.Failed, stats.Skipped))

	groups := groupBySuite(results)
	for gi, group := range groups {
		lastGroup := gi == len(groups)-1

		name := group.Name
		if name == "" {
			name = "(root)"
		}
		groupStats := statsOf(group.Results)
		sb.WriteString(ui.BuildTreePrefix(1, lastGroup, nil))
		sb.WriteString(fmt.Sprintf("%s (%d passed, %d failed, %d skipped)\n",
			name, groupStats.Passed, groupStats.Failed, groupStats.Skipped))

		for ri, res := range group.Results {
			lastResult := ri == len(group.Results)-1
			sb.WriteString(ui.BuildTreePrefix(2, lastResult, []bool{lastGroup}))
			sb.WriteString(fmt.Sprintf("%s [%s] (%s)", res.Title, res.Status, res.Duration.Truncate(time.Millisecond)))
			if res.TimedOut {
				sb.WriteString(" (timed out)")
			}
			sb.WriteString("\n")

			if res.Error != nil {
				sb.WriteString(ui.BuildTreePrefix(3, true, []bool{lastGroup, lastResult}))
				sb.WriteString(fmt.Sprintf("Error: %s\n", res.Error.Error()))
			}
		}
	}

	return sb.String()
}
