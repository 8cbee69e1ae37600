package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Clean exit, every phase completed
	ExitPhaseFailure  = 1 // One or more phases failed after retries
	ExitUserError     = 2 // Invalid arguments or profile
	ExitInternalError = 3 // Unexpected internal error
)
