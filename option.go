package actiongate

import (
	"github.com/actiongate/actiongate/model/plan"
	"github.com/actiongate/actiongate/policy"
	"github.com/actiongate/actiongate/service/audit"
	"github.com/actiongate/actiongate/service/dao"
	reqdao "github.com/actiongate/actiongate/service/dao/request"
	"github.com/actiongate/actiongate/service/event"
	"github.com/actiongate/actiongate/service/executor/handler"
	"github.com/actiongate/actiongate/service/ledger"
	"github.com/actiongate/actiongate/service/messaging"
	"github.com/actiongate/actiongate/service/ratelimit"
)

// Option customises the service assembly.
type Option func(s *Service)

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithPolicy overrides the approval policy.
func WithPolicy(pol *policy.Policy) Option {
	return func(s *Service) { s.policy = pol }
}

// WithRequestStore overrides the request store.
func WithRequestStore(store reqdao.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithPlanDAO overrides the plan store.
func WithPlanDAO(plans dao.Service[string, plan.Plan]) Option {
	return func(s *Service) { s.plans = plans }
}

// WithAudit overrides the audit log.
func WithAudit(auditor audit.Service) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithLedger overrides the financial ledger.
func WithLedger(financial ledger.Service) Option {
	return func(s *Service) { s.ledger = financial }
}

// WithRateLimiter overrides the rate limiter.
func WithRateLimiter(limiter *ratelimit.Service) Option {
	return func(s *Service) { s.limiter = limiter }
}

// WithEventQueue overrides the queue lifecycle events are published to;
// use the fs vendor for cross-process consumers.
func WithEventQueue(queue messaging.Queue[event.Event]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithHandlers registers action handlers on top of the default no-ops.
func WithHandlers(handlers ...handler.Handler) Option {
	return func(s *Service) { s.handlers = append(s.handlers, handlers...) }
}
