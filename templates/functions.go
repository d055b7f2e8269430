package templates

import (
	"fmt"
	"html/template"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// GetTemplateFunc returns the centralized template functions used across the application
func GetTemplateFunc() template.FuncMap {
	return template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			if d < time.Second {
				return fmt.Sprintf("%dms", d.Milliseconds())
			}
			return d.Truncate(time.Millisecond).String()
		},
		"getStatusClass": func(status types.RunStatus) string {
			return getStatusString(status)
		},
		"getStatusText": func(status types.RunStatus) string {
			return getStatusString(status)
		},
		"getIndentClass": func(depth int) string {
			return fmt.Sprintf("indent-%d", depth)
		},
		"getOverallStatus": func(stats types.RunStats) types.RunStatus {
			if stats.Failed > 0 {
				return types.RunStatusFail
			}
			if stats.Passed > 0 {
				return types.RunStatusPass
			}
			return types.RunStatusSkip
		},
	}
}

// getStatusString returns a consistent lowercase status string
func getStatusString(status types.RunStatus) string {
	switch status {
	case types.RunStatusPass:
		return "pass"
	case types.RunStatusFail:
		return "fail"
	case types.RunStatusSkip:
		return "skip"
	default:
		return "unknown"
	}
}
