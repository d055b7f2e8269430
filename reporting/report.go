// Package reporting persists batch outcomes to disk in human and machine
// readable forms. Sinks consume individual results as the runner produces
// them and materialize their output when the run completes.
package reporting

import (
	"path/filepath"
	"strings"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// RunDirectoryPrefix is the standardized prefix for run output directories.
const RunDirectoryPrefix = "run-"

// Sink is an interface for different ways of consuming run results
type Sink interface {
	// Consume processes a single run result
	Consume(result *types.RunResult, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// RunDir returns the output directory for a given run.
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, RunDirectoryPrefix+runID)
}

// suiteGroup is one enclosing suite and its results in arrival order.
type suiteGroup struct {
	Name    string
	Results []*types.RunResult
}

// groupBySuite splits results by their enclosing suite path, preserving the
// order in which suites first appeared. Root-level runnables group under "".
func groupBySuite(results []*types.RunResult) []suiteGroup {
	index := make(map[string]int)
	groups := make([]suiteGroup, 0)

	for _, res := range results {
		name := ""
		if len(res.TitlePath) > 1 {
			name = strings.Join(res.TitlePath[:len(res.TitlePath)-1], " > ")
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, suiteGroup{Name: name})
		}
		groups[i].Results = append(groups[i].Results, res)
	}
	return groups
}

// statsOf aggregates pass/fail/skip counts for a slice of results.
func statsOf(results []*types.RunResult) types.RunStats {
	var stats types.RunStats
	for _, res := range results {
		stats.Record(res.Status)
	}
	return stats
}
