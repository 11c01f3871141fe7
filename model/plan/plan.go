package plan

import "time"

// Status represents the lifecycle of a plan artifact.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Plan is an artifact produced by an external planning step and linked to a
// request via Request.LinkedPlanRef. The orchestrator reconciles it, marks
// it completed, once the linked request reaches the done stage.
type Plan struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Status      Status     `json:"status"`
	RequestID   string     `json:"requestId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Complete marks the plan reconciled at the given time; completing an
// already completed plan is a no-op so reconciliation stays idempotent.
func (p *Plan) Complete(now time.Time) {
	if p.Status == StatusCompleted {
		return
	}
	p.Status = StatusCompleted
	p.CompletedAt = &now
}
