package memory

import (
	"context"
	"sync"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/service/ledger"
)

// Service is an in-memory ledger for tests and embedded use.
type Service struct {
	mu      sync.Mutex
	records []*ledger.Record
}

var _ ledger.Service = (*Service)(nil)

// New creates an empty in-memory ledger.
func New() *Service {
	return &Service{}
}

// Record appends one ledger record.
func (s *Service) Record(_ context.Context, record *ledger.Record) error {
	if record == nil {
		return nil
	}
	stored := *record
	if stored.RecordedAt.IsZero() {
		stored.RecordedAt = clock.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &stored)
	return nil
}

// List returns copies of all records in append order.
func (s *Service) List(_ context.Context) ([]*ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ledger.Record, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		out = append(out, &clone)
	}
	return out, nil
}
