package request

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType identifies what kind of external action a request proposes.
// The set is closed; new kinds require a new handler registration, never
// an ad-hoc string.
type ActionType string

const (
	ActionEmailSend  ActionType = "email_send"
	ActionPayment    ActionType = "payment"
	ActionSocialPost ActionType = "social_post"
	ActionFileDelete ActionType = "file_delete"
	ActionUnknown    ActionType = "unknown"
)

// ParseActionType maps a raw string onto the closed ActionType set; anything
// unrecognised becomes ActionUnknown so that it surfaces for human review
// instead of being dropped.
func ParseActionType(raw string) ActionType {
	switch ActionType(raw) {
	case ActionEmailSend, ActionPayment, ActionSocialPost, ActionFileDelete:
		return ActionType(raw)
	}
	return ActionUnknown
}

// Stage represents the lifecycle state of a request.
type Stage string

const (
	StageIntake          Stage = "intake"
	StagePendingApproval Stage = "pending_approval"
	StageApproved        Stage = "approved"
	StageRejected        Stage = "rejected"
	StageDone            Stage = "done"
)

// Stages lists every lifecycle stage in pipeline order.
var Stages = []Stage{StageIntake, StagePendingApproval, StageApproved, StageRejected, StageDone}

// transitions encodes the legal lifecycle edges. The approved self-loop
// covers the rate-limited retry; approved->rejected covers both a human
// rejection before execution starts and the mandatory expiry re-check at
// execution time.
var transitions = map[Stage][]Stage{
	StageIntake:          {StagePendingApproval, StageApproved},
	StagePendingApproval: {StageApproved, StageRejected},
	StageApproved:        {StageApproved, StageDone, StageRejected},
	StageRejected:        {},
	StageDone:            {},
}

// CanTransition reports whether the edge s -> to is part of the lifecycle.
func (s Stage) CanTransition(to Stage) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the stage.
func (s Stage) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Priority affects presentation order only; within one tier requests are
// processed oldest first.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns a sortable weight: lower value means served earlier.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Transition tags recorded alongside exceptional edges.
const (
	TagRateLimited            = "rate_limited"
	TagExpired                = "expired"
	TagExpiredBeforeExecution = "expired_before_execution"
)

// Decision records the human sign-off for a request. The orchestrator only
// observes and stores it; it never decides on its own.
type Decision struct {
	Approved  bool      `json:"approved"`
	Actor     string    `json:"actor,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

// Request is the central entity moved through the approval pipeline.
type Request struct {
	ID            string          `json:"id"` // unique, sorts by creation time
	ActionType    ActionType      `json:"actionType"`
	Stage         Stage           `json:"stage"`
	Priority      Priority        `json:"priority"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"` // immutable once set
	Payload       json.RawMessage `json:"payload,omitempty"`
	SourceRef     string          `json:"sourceRef,omitempty"`     // originating event, opaque
	LinkedPlanRef string          `json:"linkedPlanRef,omitempty"` // plan artifact to reconcile on completion
	Tag           string          `json:"tag,omitempty"`           // last exceptional transition tag

	Decision        *Decision        `json:"decision,omitempty"`
	ExecutionResult *ExecutionResult `json:"executionResult,omitempty"`

	// Retry bookkeeping for failed handler attempts.
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// ErrInvalidTransition is returned when a lifecycle edge is not permitted.
type ErrInvalidTransition struct {
	From, To Stage
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid stage transition %v -> %v", e.From, e.To)
}

// Transition moves the request along a lifecycle edge, recording the
// supplied tag and the transition time. Only Stage, Tag and UpdatedAt
// mutate; everything else set at creation stays immutable.
func (r *Request) Transition(to Stage, tag string, now time.Time) error {
	if !r.Stage.CanTransition(to) {
		return &ErrInvalidTransition{From: r.Stage, To: to}
	}
	r.Stage = to
	r.Tag = tag
	r.UpdatedAt = now
	return nil
}

// Clone returns a deep-enough copy so that callers can mutate the result
// without affecting shared store state.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	if r.ExpiresAt != nil {
		expires := *r.ExpiresAt
		clone.ExpiresAt = &expires
	}
	if r.Decision != nil {
		decision := *r.Decision
		clone.Decision = &decision
	}
	if r.ExecutionResult != nil {
		result := *r.ExecutionResult
		clone.ExecutionResult = &result
	}
	if r.Payload != nil {
		clone.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &clone
}
