// Package exitcodes defines the standard exit codes used by op-harness.
package exitcodes

// Exit code constants used by op-harness
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when all runnables pass successfully
// * RunFailure (1): Used when one or more runnables fail
// * RuntimeErr (2): Used for runtime errors such as panics, configuration or other failures
const (
	Success    = 0 // All runnables pass
	RunFailure = 1 // Runnable failures
	RuntimeErr = 2 // Runtime errors or configuration failures
)
