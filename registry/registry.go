// Package registry manages the set of runnables a harness executes, together
// with their file-based configuration overrides.
package registry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-harness/runnable"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Definition is one registered unit of logic plus its suite placement.
type Definition struct {
	Title string
	Suite string // title of the enclosing suite; empty means top level
	Fn    any    // any func shape accepted by runnable.New
}

// Override adjusts a registered runnable from the config file. Durations use
// the human grammar ("1s", "250ms", bare numbers are milliseconds).
type Override struct {
	Title   string `yaml:"title"`
	Timeout string `yaml:"timeout,omitempty"`
	Slow    string `yaml:"slow,omitempty"`
	Skip    bool   `yaml:"skip,omitempty"`
	Retries *int   `yaml:"retries,omitempty"`
	File    string `yaml:"file,omitempty"`
}

// OverrideConfig is the on-disk shape of a harness config file.
type OverrideConfig struct {
	Defaults struct {
		Timeout string `yaml:"timeout,omitempty"`
		Slow    string `yaml:"slow,omitempty"`
	} `yaml:"defaults"`
	Runnables []Override `yaml:"runnables,omitempty"`
}

// Config contains registry configuration
type Config struct {
	Log            log.Logger
	ConfigFile     string        // optional overrides file
	DefaultTimeout time.Duration // applied when neither override nor default section set one
	DefaultSlow    time.Duration
}

// Registry holds runnable definitions and materializes configured runnables
type Registry struct {
	config      Config
	definitions []Definition
	overrides   map[string]Override
	defaults    OverrideConfig
	mu          sync.RWMutex
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config:    cfg,
		overrides: make(map[string]Override),
	}

	if cfg.ConfigFile != "" {
		if err := r.loadOverrides(cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	cfg.Log.Debug("Registry created", "configFile", cfg.ConfigFile)
	return r, nil
}

// Register adds a runnable definition. Titles must be unique.
func (r *Registry) Register(title string, fn any) error {
	return r.RegisterInSuite(title, "", fn)
}

// RegisterInSuite adds a runnable definition under a named suite.
func (r *Registry) RegisterInSuite(title, suite string, fn any) error {
	if title == "" {
		return fmt.Errorf("runnable title is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range r.definitions {
		if def.Title == title {
			return fmt.Errorf("runnable %q is already registered", title)
		}
	}
	r.definitions = append(r.definitions, Definition{Title: title, Suite: suite, Fn: fn})
	return nil
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

// Build materializes every registered definition into a configured Runnable,
// applying default thresholds and per-title overrides.
func (r *Registry) Build() ([]*runnable.Runnable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	suites := make(map[string]*types.Suite)
	runnables := make([]*runnable.Runnable, 0, len(r.definitions))

	for _, def := range r.definitions {
		rn, err := runnable.New(def.Title, def.Fn)
		if err != nil {
			return nil, fmt.Errorf("building runnable %q: %w", def.Title, err)
		}

		if def.Suite != "" {
			suite, ok := suites[def.Suite]
			if !ok {
				suite = types.NewSuite(def.Suite, nil)
				suites[def.Suite] = suite
			}
			rn.SetParent(suite)
		}

		if err := r.applySettings(rn); err != nil {
			return nil, fmt.Errorf("configuring runnable %q: %w", def.Title, err)
		}
		runnables = append(runnables, rn)
	}

	return runnables, nil
}

func (r *Registry) applySettings(rn *runnable.Runnable) error {
	if r.config.DefaultTimeout > 0 {
		if err := rn.SetTimeout(r.config.DefaultTimeout); err != nil {
			return err
		}
	}
	if r.config.DefaultSlow > 0 {
		if err := rn.SetSlow(r.config.DefaultSlow); err != nil {
			return err
		}
	}
	if d := r.defaults.Defaults.Timeout; d != "" {
		if err := rn.SetTimeout(d); err != nil {
			return err
		}
	}
	if d := r.defaults.Defaults.Slow; d != "" {
		if err := rn.SetSlow(d); err != nil {
			return err
		}
	}

	override, ok := r.overrides[rn.Title()]
	if !ok {
		return nil
	}
	if override.Timeout != "" {
		if err := rn.SetTimeout(override.Timeout); err != nil {
			return err
		}
	}
	if override.Slow != "" {
		if err := rn.SetSlow(override.Slow); err != nil {
			return err
		}
	}
	if override.Retries != nil {
		rn.SetRetries(*override.Retries)
	}
	if override.File != "" {
		rn.SetFile(override.File)
	}
	if override.Skip {
		rn.SetPending(true)
	}
	return nil
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// loadOverrides loads the overrides config from a file
func (r *Registry) loadOverrides(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config.Log.Debug("Reading harness config file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var cfg OverrideConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	r.defaults = cfg
	for _, override := range cfg.Runnables {
		if override.Title == "" {
			return fmt.Errorf("override entry without title in %s", path)
		}
		r.overrides[override.Title] = override
	}
	return nil
}
