package types

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus represents the possible terminal states of a runnable execution
type RunStatus string

const (
	RunStatusPass RunStatus = "pass"
	RunStatusFail RunStatus = "fail"
	RunStatusSkip RunStatus = "skip"
)

// RunResult captures the outcome of a single runnable execution
type RunResult struct {
	Title     string
	TitlePath []string      // Full path from the outermost suite to this runnable
	Status    RunStatus
	Error     error
	Duration  time.Duration // Wall-clock execution time
	TimedOut  bool          // Whether the timeout controller forced the outcome
	Slow      bool          // Whether the run exceeded the advisory slow threshold
	Retries   int           // Number of re-runs performed by the runner
}

// RunStats tracks statistics across a batch of runs
type RunStats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
}

// Record folds one result into the stats.
func (s *RunStats) Record(status RunStatus) {
	s.Total++
	switch status {
	case RunStatusPass:
		s.Passed++
	case RunStatusFail:
		s.Failed++
	case RunStatusSkip:
		s.Skipped++
	}
}

// FullTitle returns the title path joined by " > " for display purposes
func (r *RunResult) FullTitle() string {
	if len(r.TitlePath) == 0 {
		return r.Title
	}
	return strings.Join(r.TitlePath, " > ")
}

// ValidateTitlePath checks that a title path is well formed.
// Returns an error if the path is invalid.
func ValidateTitlePath(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("title path cannot be empty")
	}
	for i, element := range path {
		if element == "" {
			return fmt.Errorf("title path element at index %d cannot be empty", i)
		}
	}
	return nil
}
