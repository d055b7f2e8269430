package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// jsonResult is the serializable form of one run result.
type jsonResult struct {
	Title     string   `json:"title"`
	TitlePath []string `json:"titlePath"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Duration  int64    `json:"durationMs"`
	TimedOut  bool     `json:"timedOut"`
	Slow      bool     `json:"slow,omitempty"`
	Retries   int      `json:"retries,omitempty"`
}

// jsonReport is the top-level shape of results.json.
type jsonReport struct {
	RunID     string        `json:"runId"`
	Generated time.Time     `json:"generated"`
	Stats     types.RunStats `json:"stats"`
	Results   []jsonResult  `json:"results"`
}

// JSONSink writes the raw run results to results.json for machine consumers.
type JSONSink struct {
	baseDir string
	results map[string][]*types.RunResult
}

// NewJSONSink creates a new JSON sink.
func NewJSONSink(baseDir string) *JSONSink {
	return &JSONSink{
		baseDir: baseDir,
		results: make(map[string][]*types.RunResult),
	}
}

// Consume collects run results for later JSON generation
func (s *JSONSink) Consume(result *types.RunResult, runID string) error {
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// Complete writes the JSON report file for the run
func (s *JSONSink) Complete(runID string) error {
	results := s.results[runID]

	report := jsonReport{
		RunID:     runID,
		Generated: time.Now().UTC(),
		Stats:     statsOf(results),
		Results:   make([]jsonResult, 0, len(results)),
	}
	for _, res := range results {
		jr := jsonResult{
			Title:     res.Title,
			TitlePath: res.TitlePath,
			Status:    string(res.Status),
			Duration:  res.Duration.Milliseconds(),
			TimedOut:  res.TimedOut,
			Slow:      res.Slow,
			Retries:   res.Retries,
		}
		if res.Error != nil {
			jr.Error = res.Error.Error()
		}
		report.Results = append(report.Results, jr)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}

	outputDir := RunDir(s.baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	jsonFile := filepath.Join(outputDir, "results.json")
	if err := os.WriteFile(jsonFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	return nil
}
