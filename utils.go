package harness

import (
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a colored string representing the run result
func getResultString(status types.RunStatus) string {
	switch status {
	case types.RunStatusPass:
		return "✓ pass"
	case types.RunStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}
