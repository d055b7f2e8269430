package harness

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-harness/flags"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	ConfigFile     string        // Optional YAML file with per-runnable overrides
	RunInterval    time.Duration // Interval between harness batches
	RunOnce        bool          // Indicates if the service should exit after one batch
	DefaultTimeout time.Duration // Default timeout for individual runnables
	DefaultSlow    time.Duration // Default advisory slow threshold
	LogDir         string        // Directory for per-run file output; empty disables it
	Log            log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	configFile := ctx.String(flags.ConfigFile.Name)
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for config file '%s': %w", configFile, err)
		}
		configFile = abs
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	defaultTimeout := ctx.Duration(flags.DefaultTimeout.Name)
	if defaultTimeout < 0 {
		return nil, fmt.Errorf("default timeout cannot be negative")
	}

	defaultSlow := ctx.Duration(flags.DefaultSlow.Name)
	if defaultSlow < 0 {
		return nil, fmt.Errorf("default slow threshold cannot be negative")
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		abs, err := filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log dir '%s': %w", logDir, err)
		}
		logDir = abs
	}

	return &Config{
		ConfigFile:     configFile,
		RunInterval:    runInterval,
		RunOnce:        runOnce,
		DefaultTimeout: defaultTimeout,
		DefaultSlow:    defaultSlow,
		LogDir:         logDir,
		Log:            log,
	}, nil
}
