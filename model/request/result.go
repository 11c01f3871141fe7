package request

import "time"

// Outcome classifies a single execution attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeSimulated   Outcome = "simulated"
	OutcomeFailed      Outcome = "failed"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeExpired     Outcome = "expired"
)

// Executed reports whether the attempt reached-or-simulated the action, as
// opposed to being stopped by a precondition.
func (o Outcome) Executed() bool {
	return o == OutcomeSuccess || o == OutcomeSimulated
}

// ExecutionResult captures the terminal record of one execution attempt.
// At most one result with a success or simulated outcome may ever exist
// per request, re-execution of a done request returns the stored result.
type ExecutionResult struct {
	Outcome    Outcome   `json:"outcome"`
	ExecutedAt time.Time `json:"executedAt"`
	DryRun     bool      `json:"dryRun"`
	Error      string    `json:"error,omitempty"`
	Tag        string    `json:"tag,omitempty"` // e.g. expired_before_execution, protected_path
}
