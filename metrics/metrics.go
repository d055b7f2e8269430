package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "harness"
)

var (
	Debug                bool = true
	validResults              = []types.RunStatus{types.RunStatusPass, types.RunStatusFail, types.RunStatusSkip}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of runnable executions",
	}, []string{
		"run_id",
		"title",
		"result",
	})

	runTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_timeouts_total",
		Help:      "Count of runnable executions forced to a timeout outcome",
	}, []string{
		"run_id",
	})

	batchResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_results",
		Help:      "Result of harness batches",
	}, []string{
		"run_id",
		"result",
	})

	batchRunnableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_runnable_total",
		Help:      "Total number of runnables executed per batch",
	}, []string{
		"run_id",
	})

	batchRunnablePassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_runnable_passed",
		Help:      "Number of passed runnables per batch",
	}, []string{
		"run_id",
	})

	batchRunnableFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_runnable_failed",
		Help:      "Number of failed runnables per batch",
	}, []string{
		"run_id",
	})

	batchDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_duration",
		Help:      "Duration of harness batches",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordRun records the outcome of one runnable execution.
func RecordRun(runID string, title string, result types.RunStatus, timedOut bool) {
	if !isValidResult(result) {
		log.Error("RecordRun - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "runs_total",
			"run_id", runID,
			"title", title,
			"result", result)
	}
	runsTotal.WithLabelValues(runID, title, string(result)).Inc()
	if timedOut {
		runTimeoutsTotal.WithLabelValues(runID).Inc()
	}
}

// RecordBatch records the aggregate outcome of one harness batch.
func RecordBatch(
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	batchResults.WithLabelValues(runID, result).Set(1)
	batchRunnableTotal.WithLabelValues(runID).Add(float64(total))
	batchRunnablePassed.WithLabelValues(runID).Add(float64(passed))
	batchRunnableFailed.WithLabelValues(runID).Add(float64(failed))
	batchDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidResult(result types.RunStatus) bool {
	return slices.Contains(validResults, result)
}
