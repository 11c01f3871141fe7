// Package ratelimit provides sliding-window reservation counters per action
// category. A reservation at time T counts every prior reservation in
// (T-window, T]; the check and the reservation are a single atomic step so
// concurrent execution attempts can never jointly exceed a limit.
package ratelimit

import (
	"sync"
	"time"

	"github.com/actiongate/actiongate/model/request"
)

// Limit bounds one category: at most Max reservations per sliding Window.
// Max <= 0 means the category is unlimited.
type Limit struct {
	Max    int           `json:"max" yaml:"max"`
	Window time.Duration `json:"window" yaml:"window"`
}

// Config carries the per-category limits. The zero value means "no limits";
// use DefaultConfig for the handbook defaults.
type Config struct {
	EmailsPerHour     int `json:"emailsPerHour" yaml:"emailsPerHour"`
	PaymentsPerDay    int `json:"paymentsPerDay" yaml:"paymentsPerDay"`
	SocialPostsPerDay int `json:"socialPostsPerDay" yaml:"socialPostsPerDay"`
	FileDeletesPerDay int `json:"fileDeletesPerDay" yaml:"fileDeletesPerDay"`
}

// DefaultConfig returns the default limits: 10 emails/hour, 3 payments/day,
// 1 social post/day, 5 file deletes/day.
func DefaultConfig() Config {
	return Config{
		EmailsPerHour:     10,
		PaymentsPerDay:    3,
		SocialPostsPerDay: 1,
		FileDeletesPerDay: 5,
	}
}

// Service tracks reservations per action category.
type Service struct {
	mu      sync.Mutex
	config  Config
	buckets map[request.ActionType][]time.Time
}

// New creates a rate limiter with the supplied configuration.
func New(config Config) *Service {
	return &Service{
		config:  config,
		buckets: map[request.ActionType][]time.Time{},
	}
}

// UpdateConfig swaps the limits. Existing reservations are kept; the new
// limits apply from the next check (current-configuration semantics).
func (s *Service) UpdateConfig(config Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// limit resolves the Limit for a category from the current configuration.
func (s *Service) limit(category request.ActionType) Limit {
	switch category {
	case request.ActionEmailSend:
		return Limit{Max: s.config.EmailsPerHour, Window: time.Hour}
	case request.ActionPayment:
		return Limit{Max: s.config.PaymentsPerDay, Window: 24 * time.Hour}
	case request.ActionSocialPost:
		return Limit{Max: s.config.SocialPostsPerDay, Window: 24 * time.Hour}
	case request.ActionFileDelete:
		return Limit{Max: s.config.FileDeletesPerDay, Window: 24 * time.Hour}
	}
	return Limit{}
}

// CheckAndReserve reports whether the category still has budget at `now`
// and, when it does, records the reservation. Prune, check and append
// happen under one lock so the reservation is atomic.
func (s *Service) CheckAndReserve(category request.ActionType, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.limit(category)
	if limit.Max <= 0 {
		return true // no limit defined for this category
	}
	kept := s.prune(category, now, limit.Window)
	s.buckets[category] = kept
	if len(kept) >= limit.Max {
		return false
	}
	s.buckets[category] = append(kept, now)
	return true
}

// Status returns (used, max) for a category at `now`; max is -1 for an
// unlimited category.
func (s *Service) Status(category request.ActionType, now time.Time) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.limit(category)
	if limit.Max <= 0 {
		return 0, -1
	}
	kept := s.prune(category, now, limit.Window)
	s.buckets[category] = kept
	return len(kept), limit.Max
}

// RetryAfter returns how long until the oldest reservation leaves the
// window, i.e. when the next attempt could succeed. Zero when the category
// currently has budget.
func (s *Service) RetryAfter(category request.ActionType, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.limit(category)
	if limit.Max <= 0 {
		return 0
	}
	kept := s.prune(category, now, limit.Window)
	s.buckets[category] = kept
	if len(kept) < limit.Max {
		return 0
	}
	return kept[0].Add(limit.Window).Sub(now)
}

// Reset clears all reservations for a category.
func (s *Service) Reset(category request.ActionType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, category)
}

// prune drops reservations that left the window; caller holds the lock.
func (s *Service) prune(category request.ActionType, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	var kept []time.Time
	for _, ts := range s.buckets[category] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
