package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/actiongate/actiongate/internal/clock"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/service/dao"
	"github.com/actiongate/actiongate/service/dao/criteria"
	reqdao "github.com/actiongate/actiongate/service/dao/request"
)

// Service implements an in-memory, thread-safe request store. All API
// methods work with clones to eliminate data races between goroutines; the
// compare-and-swap transition holds the write lock across the whole
// load-check-mutate-save sequence.
type Service struct {
	requests map[string]*mrequest.Request
	mux      sync.RWMutex
}

var _ reqdao.Store = (*Service)(nil)

// Save persists (a clone of) the supplied request.
func (s *Service) Save(_ context.Context, r *mrequest.Request) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	if r.ID == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	s.requests[r.ID] = r.Clone()
	return nil
}

// Load retrieves a clone of the request or dao.ErrNotFound.
func (s *Service) Load(_ context.Context, id string) (*mrequest.Request, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mux.RLock()
	r, ok := s.requests[id]
	s.mux.RUnlock()

	if !ok {
		return nil, dao.ErrNotFound
	}
	return r.Clone(), nil
}

// Delete removes a request.
func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.requests[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

// List returns clones of all requests matching the optional Stage parameter.
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*mrequest.Request, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*mrequest.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if !criteria.FilterByStage(string(r.Stage), parameters) {
			continue
		}
		out = append(out, r.Clone())
	}
	sortByCreation(out)
	return out, nil
}

// ListByStage returns requests in the given stage, oldest first.
func (s *Service) ListByStage(ctx context.Context, stage mrequest.Stage) ([]*mrequest.Request, error) {
	return s.List(ctx, dao.NewParameter("Stage", string(stage)))
}

// Transition performs an atomic compare-and-swap on the request stage.
func (s *Service) Transition(_ context.Context, id string, from, to mrequest.Stage, mutate func(*mrequest.Request)) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	stored, ok := s.requests[id]
	if !ok {
		return dao.ErrNotFound
	}
	if stored.Stage != from {
		return dao.ErrStageConflict
	}

	updated := stored.Clone()
	if err := updated.Transition(to, "", clock.Now()); err != nil {
		return err
	}
	if mutate != nil {
		mutate(updated)
	}
	// mutate may refine the tag but never the stage
	updated.Stage = to
	s.requests[id] = updated
	return nil
}

// New constructor.
func New() *Service {
	return &Service{requests: map[string]*mrequest.Request{}}
}

func sortByCreation(requests []*mrequest.Request) {
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].ID < requests[j].ID
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}
