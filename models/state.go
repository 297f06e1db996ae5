package models

// State is the observable lifecycle state of the orchestrator.
type State string

const (
	// StateIdle means no request is in flight and nothing is being shown.
	StateIdle State = "idle"

	// StateSubmitting means a request is in flight.
	StateSubmitting State = "submitting"

	// StateSucceeded means the last call produced an archive awaiting hand-off.
	StateSucceeded State = "succeeded"

	// StateFailed means the last call produced a classified failure.
	StateFailed State = "failed"
)

// String returns the string representation of State.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true for the end states of a single call.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}
