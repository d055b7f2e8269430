// Package runner executes batches of registered runnables and aggregates
// their outcomes. It is the external-runner collaborator of the execution
// core: it owns the retry decision and the pass/fail classification the core
// itself never assigns.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/runnable"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum-optimism/infra/op-harness/ui"
)

// BatchResult captures the complete results of one harness batch
type BatchResult struct {
	Results  []*types.RunResult
	Status   types.RunStatus
	Duration time.Duration
	Stats    types.RunStats
	RunID    string
}

// Runner defines the interface for executing a batch of runnables
type Runner interface {
	RunAll(ctx context.Context) (*BatchResult, error)
}

// runner struct implements Runner interface
type runner struct {
	registry *registry.Registry
	log      log.Logger
	tracer   trace.Tracer
}

// Config holds configuration for creating a new runner
type Config struct {
	Registry *registry.Registry
	Log      log.Logger
}

// NewRunner creates a new runner instance
func NewRunner(cfg Config) (Runner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Debug("No logger provided, using default")
	}

	return &runner{
		registry: cfg.Registry,
		log:      cfg.Log,
		tracer:   otel.Tracer("op-harness/runner"),
	}, nil
}

// RunAll executes every registered runnable sequentially and aggregates the
// outcomes into a single batch result.
func (r *runner) RunAll(ctx context.Context) (*BatchResult, error) {
	runID := uuid.New().String()
	r.log.Debug("Starting batch", "run_id", runID)

	ctx, span := r.tracer.Start(ctx, "run batch")
	defer span.End()

	runnables, err := r.registry.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build runnables: %w", err)
	}

	result := &BatchResult{
		RunID:  runID,
		Status: types.RunStatusPass,
	}
	result.Stats.StartTime = time.Now()

	for _, rn := range runnables {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("batch interrupted: %w", ctx.Err())
		}

		res := r.runOne(ctx, runID, rn)
		result.Results = append(result.Results, res)
		result.Stats.Record(res.Status)
		metrics.RecordRun(runID, res.FullTitle(), res.Status, res.TimedOut)
	}

	result.Stats.EndTime = time.Now()
	result.Duration = result.Stats.EndTime.Sub(result.Stats.StartTime)
	if result.Stats.Failed > 0 {
		result.Status = types.RunStatusFail
	} else if result.Stats.Total > 0 && result.Stats.Total == result.Stats.Skipped {
		result.Status = types.RunStatusSkip
	}

	r.log.Info("Batch completed",
		"run_id", runID,
		"status", result.Status,
		"total", result.Stats.Total,
		"failed", result.Stats.Failed,
		"duration", result.Duration)
	return result, nil
}

// runOne drives a single runnable to its outcome, re-running it while the
// configured retry allowance permits.
func (r *runner) runOne(ctx context.Context, runID string, rn *runnable.Runnable) *types.RunResult {
	_, span := r.tracer.Start(ctx, rn.Title())
	defer span.End()

	title := rn.Title()
	r.log.Info("Running", "runnable", title, "run_id", runID)

	rn.OnError(func(err error) {
		r.log.Error("Out-of-band error from runnable", "runnable", title, "error", err)
		metrics.RecordErrorDetails("runnable error event", err)
	})

	var runErr error
	for {
		runErr = r.execute(rn)
		if runErr == nil || rn.IsPending() {
			break
		}
		if rn.CurrentRetry() >= rn.Retries() {
			break
		}
		rn.SetCurrentRetry(rn.CurrentRetry() + 1)
		rn.Reset()
		r.log.Warn("Retrying failed runnable",
			"runnable", title,
			"attempt", rn.CurrentRetry(),
			"allowed", rn.Retries(),
			"error", runErr)
	}

	result := &types.RunResult{
		Title:     title,
		TitlePath: rn.TitlePath(),
		Duration:  rn.Duration(),
		Error:     runErr,
		Retries:   rn.CurrentRetry(),
		TimedOut:  runnable.IsTimeoutError(runErr),
		Slow:      rn.Duration() > rn.Slow(),
	}

	switch {
	case rn.IsPending():
		result.Status = types.RunStatusSkip
	case runErr != nil:
		rn.SetState(runnable.StateFailed)
		result.Status = types.RunStatusFail
	default:
		rn.SetState(runnable.StatePassed)
		result.Status = types.RunStatusPass
	}

	r.log.Debug("Run finished",
		"runnable", title,
		"status", result.Status,
		"duration", result.Duration,
		"retries", result.Retries)
	return result
}

// execute performs one run of the runnable and blocks until its single
// outcome arrives.
func (r *runner) execute(rn *runnable.Runnable) error {
	outcome := make(chan error, 1)
	rn.Run(func(err error) {
		outcome <- err
	})
	return <-outcome
}

// String returns a formatted string representation of the batch results
func (b *BatchResult) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Harness Run Results (%s):\n", formatDuration(b.Duration)))
	sb.WriteString(fmt.Sprintf("Total: %d, Passed: %d, Failed: %d, Skipped: %d\n",
		b.Stats.Total, b.Stats.Passed, b.Stats.Failed, b.Stats.Skipped))

	for i, res := range b.Results {
		last := i == len(b.Results)-1
		sb.WriteString(ui.BuildTreePrefix(1, last, nil))
		sb.WriteString(fmt.Sprintf("%s (%s) [status=%s]\n",
			res.FullTitle(), formatDuration(res.Duration), res.Status))
		if res.Error != nil {
			if last {
				sb.WriteString(ui.TreeIndent)
			} else {
				sb.WriteString(ui.TreeContinue)
			}
			sb.WriteString(ui.TreeLastBranch)
			sb.WriteString(fmt.Sprintf("Error: %s\n", res.Error.Error()))
		}
	}
	return sb.String()
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
