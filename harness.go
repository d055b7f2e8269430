// Package harness wires the runnable execution core into a long-lived
// service: a registry of runnables, a runner that executes them in batches,
// and console plus metrics reporting of the outcomes.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/ethereum-optimism/infra/op-harness/logging"
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// harness implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &harness{}

// harness is the service that runs registered runnables in batches.
type harness struct {
	ctx      context.Context
	config   *Config
	version  string
	registry *registry.Registry
	runner   runner.Runner
	result   *runner.BatchResult

	scheduler BatchScheduler
	formatter ResultFormatter
	reporter  MetricsReporter

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating harness with config",
		"configFile", config.ConfigFile,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"defaultTimeout", config.DefaultTimeout,
		"defaultSlow", config.DefaultSlow)

	reg, err := registry.NewRegistry(registry.Config{
		Log:            config.Log,
		ConfigFile:     config.ConfigFile,
		DefaultTimeout: config.DefaultTimeout,
		DefaultSlow:    config.DefaultSlow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	// Create runner with registry
	batchRunner, err := runner.NewRunner(runner.Config{
		Registry: reg,
		Log:      config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	config.Log.Info("harness.New: created registry and runner")

	return &harness{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		runner:           batchRunner,
		scheduler:        NewDefaultBatchScheduler(config.RunInterval, config.RunOnce, config.Log),
		formatter:        NewConsoleResultFormatter(config.Log),
		reporter:         NewDefaultMetricsReporter(),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Registry exposes the underlying registry so callers can register runnables
// before the service starts.
func (h *harness) Registry() *registry.Registry {
	return h.registry
}

// Start runs the registered runnables periodically at the configured interval.
// Start implements the cliapp.Lifecycle interface.
func (h *harness) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			h.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	h.ctx = ctx
	h.scheduler.RegisterCallback(h.runBatch)

	err := h.scheduler.Start(ctx)
	if err != nil {
		// For runtime errors (like panics or configuration issues), return exit code 2
		h.config.Log.Error("Runtime error running batch", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	// If in run-once mode, trigger shutdown and return
	if h.config.RunOnce {
		h.config.Log.Info("Batch completed, exiting (run-once mode)")

		// Check if any runnables failed and return appropriate exit code
		if h.result != nil && h.result.Status == types.RunStatusFail {
			h.config.Log.Warn("Run-once batch completed with failures, returning exit code 1")
			// Return exit code 1 for runnable failures
			return NewRunFailureError(h.result.String())
		}

		// Only need to call this when we're in run-once mode and all runnables passed
		go func() {
			h.shutdownCallback(nil)
		}()
		return nil // Success (exit code 0)
	}

	h.config.Log.Debug("op-harness started successfully")
	return nil
}

// runBatch runs all registered runnables and processes the results
func (h *harness) runBatch() error {
	h.config.Log.Info("Running all runnables...")
	result, err := h.runner.RunAll(h.ctx)
	if err != nil {
		// This is a runtime error (not a runnable failure)
		h.config.Log.Error("Runtime error running batch", "error", err)
		return NewRuntimeError(err)
	}
	h.result = result

	if err := h.formatter.FormatResults(result); err != nil {
		h.config.Log.Error("Error formatting results", "error", err)
	}
	h.reporter.ReportResults(result.RunID, result)

	if h.config.LogDir != "" {
		if err := h.writeRunLogs(result); err != nil {
			h.config.Log.Error("Error writing run logs", "error", err)
		}
	}

	h.config.Log.Info("Batch completed", "run_id", result.RunID, "status", result.Status)
	return nil
}

// writeRunLogs persists the batch outcome under the configured log directory.
func (h *harness) writeRunLogs(result *runner.BatchResult) error {
	fileLogger, err := logging.NewFileLogger(h.config.LogDir, result.RunID)
	if err != nil {
		return err
	}
	for _, res := range result.Results {
		if err := fileLogger.LogResult(res); err != nil {
			return err
		}
	}
	if err := fileLogger.Complete(); err != nil {
		return err
	}
	h.config.Log.Info("Run logs written", "dir", fileLogger.LogDir())
	return nil
}

// Stop stops the op-harness service.
// Stop implements the cliapp.Lifecycle interface.
func (h *harness) Stop(ctx context.Context) error {
	h.config.Log.Info("Stopping op-harness")

	err := h.scheduler.Stop()
	if err != nil {
		return err
	}

	h.config.Log.Info("op-harness stopped successfully")
	return nil
}

// Stopped returns true if the op-harness service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (h *harness) Stopped() bool {
	return h.scheduler.Stopped()
}

// Result returns the most recent batch outcome.
func (h *harness) Result() *runner.BatchResult {
	return h.result
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (h *harness) WaitForShutdown(ctx context.Context) error {
	return h.scheduler.WaitForShutdown(ctx)
}
