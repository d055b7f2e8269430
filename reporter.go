package harness

import (
	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/runner"
)

// MetricsReporter is responsible for reporting metrics from batch results.
type MetricsReporter interface {
	ReportResults(runID string, result *runner.BatchResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the batch results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(runID string, result *runner.BatchResult) {
	metrics.RecordBatch(
		runID,
		string(result.Status),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Duration,
	)
}
