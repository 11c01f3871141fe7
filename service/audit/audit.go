// Package audit provides the append-only, structured record of every
// decision and execution attempt. Entries are immutable once written; the
// log is the single place an operator can reconstruct what the system did
// and why, including simulated runs.
package audit

import (
	"context"
	"time"
)

// Well-known results recorded on audit entries.
const (
	ResultSuccess         = "success"
	ResultSimulated       = "simulated"
	ResultFailed          = "failed"
	ResultDenied          = "denied"
	ResultRateLimited     = "rate_limited"
	ResultExpired         = "expired"
	ResultIntake          = "intake"
	ResultPendingApproval = "pending_approval"
	ResultApproved        = "approved"
	ResultRejected        = "rejected"
	ResultCycle           = "cycle"
)

// Well-known actors.
const (
	ActorOrchestrator = "orchestrator"
	ActorExecutor     = "executor"
	ActorIntake       = "intake"
	ActorHuman        = "human"
)

// Entry is one immutable audit record. Each write is a single atomic
// append; no component may mutate a written entry.
type Entry struct {
	Timestamp  time.Time         `json:"timestamp"`
	ActionType string            `json:"actionType"`
	Actor      string            `json:"actor"`
	Target     string            `json:"target,omitempty"`
	DryRun     bool              `json:"dryRun"`
	Result     string            `json:"result"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Service is the audit log contract. Implementations must tolerate
// concurrent writers without interleaving corrupting a single entry.
type Service interface {
	// Log appends one entry. The entry timestamp is set by the
	// implementation when zero.
	Log(ctx context.Context, entry *Entry) error

	// List returns the entries recorded on the given day, in append order.
	List(ctx context.Context, day time.Time) ([]*Entry, error)
}
