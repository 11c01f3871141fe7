// Package ledger keeps the financial record store. Exactly one record is
// written per payment execution outcome that reaches the handler-or-
// simulation step; simulated runs are recorded too, tagged accordingly, so
// the books stay complete across modes.
package ledger

import (
	"context"
	"time"
)

// Record is one financial ledger entry.
type Record struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	Recipient  string    `json:"recipient"`
	Reference  string    `json:"reference,omitempty"`
	Simulated  bool      `json:"simulated"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Service is the ledger contract.
type Service interface {
	// Record appends one ledger record.
	Record(ctx context.Context, record *Record) error

	// List returns all records in append order.
	List(ctx context.Context) ([]*Record, error)
}
