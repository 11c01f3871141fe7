package memory

import (
	"context"
	"sync"
	"time"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/service/audit"
)

// Service is an in-memory audit log for tests and embedded use.
type Service struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

var _ audit.Service = (*Service)(nil)

// New creates an empty in-memory audit log.
func New() *Service {
	return &Service{}
}

// Log appends one entry.
func (s *Service) Log(_ context.Context, entry *audit.Entry) error {
	if entry == nil {
		return nil
	}
	stored := *entry
	if stored.Timestamp.IsZero() {
		stored.Timestamp = clock.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &stored)
	return nil
}

// List returns copies of entries recorded on the given day.
func (s *Service) List(_ context.Context, day time.Time) ([]*audit.Entry, error) {
	year, month, date := day.UTC().Date()

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*audit.Entry
	for _, entry := range s.entries {
		y, m, d := entry.Timestamp.UTC().Date()
		if y == year && m == month && d == date {
			clone := *entry
			out = append(out, &clone)
		}
	}
	return out, nil
}

// All returns copies of every recorded entry in append order.
func (s *Service) All() []*audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audit.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		clone := *entry
		out = append(out, &clone)
	}
	return out
}
