package actiongate

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/model/plan"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/policy"
	"github.com/actiongate/actiongate/service/audit"
	auditfs "github.com/actiongate/actiongate/service/audit/fs"
	auditmem "github.com/actiongate/actiongate/service/audit/memory"
	"github.com/actiongate/actiongate/service/dao"
	planmem "github.com/actiongate/actiongate/service/dao/plan/memory"
	reqdao "github.com/actiongate/actiongate/service/dao/request"
	reqfs "github.com/actiongate/actiongate/service/dao/request/fs"
	reqmem "github.com/actiongate/actiongate/service/dao/request/memory"
	"github.com/actiongate/actiongate/service/event"
	"github.com/actiongate/actiongate/service/executor"
	"github.com/actiongate/actiongate/service/executor/handler"
	"github.com/actiongate/actiongate/service/intake"
	"github.com/actiongate/actiongate/service/ledger"
	ledgerfs "github.com/actiongate/actiongate/service/ledger/fs"
	ledgermem "github.com/actiongate/actiongate/service/ledger/memory"
	"github.com/actiongate/actiongate/service/messaging"
	msgfs "github.com/actiongate/actiongate/service/messaging/fs"
	msgmem "github.com/actiongate/actiongate/service/messaging/memory"
	"github.com/actiongate/actiongate/service/orchestrator"
	"github.com/actiongate/actiongate/service/ratelimit"
)

// Service assembles the approval gate: intake, stores, policy, rate
// limiter, executor and the orchestrator loop.
type Service struct {
	config   *Config
	policy   *policy.Policy
	store    reqdao.Store
	plans    dao.Service[string, plan.Plan]
	auditor  audit.Service
	ledger   ledger.Service
	limiter  *ratelimit.Service
	queue    messaging.Queue[event.Event]
	events   *event.Service
	handlers []handler.Handler
	registry *handler.Registry

	executor     *executor.Service
	intake       *intake.Service
	orchestrator *orchestrator.Service
	runtime      *Runtime

	simulateOnly atomic.Bool
	initErr      error
}

// New creates a fully wired service. With no options everything runs in
// memory and in simulate-only mode.
func New(options ...Option) *Service {
	s := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(s)
	}
	s.init()
	return s
}

func (s *Service) init() {
	if err := s.config.Validate(); err != nil {
		s.initErr = err
		return
	}
	s.simulateOnly.Store(s.config.simulateOnly())
	if err := s.ensureBaseSetup(); err != nil {
		s.initErr = err
		return
	}

	s.registry = handler.NewRegistry(
		handler.NewNop(mrequest.ActionEmailSend),
		handler.NewNop(mrequest.ActionPayment),
		handler.NewNop(mrequest.ActionSocialPost),
		handler.NewNop(mrequest.ActionFileDelete),
	)
	for _, h := range s.handlers {
		s.registry.Register(h)
	}

	executorOptions := []executor.Option{
		executor.WithLedger(s.ledger),
		executor.WithEvents(s.events),
		executor.WithSimulateOnly(s.simulateOnly.Load),
	}
	if timeout, _ := s.config.handlerTimeout(); timeout > 0 {
		executorOptions = append(executorOptions, executor.WithHandlerTimeout(timeout))
	}
	s.executor = executor.New(s.store, s.policy, s.limiter, s.registry, s.auditor, executorOptions...)
	s.intake = intake.New(s.store, s.auditor, s.events)

	orchestratorOptions := []orchestrator.Option{orchestrator.WithEvents(s.events)}
	if interval, _ := s.config.pollInterval(); interval > 0 {
		orchestratorOptions = append(orchestratorOptions, orchestrator.WithPollInterval(interval))
	}
	if s.config.HealthLocation != "" {
		orchestratorOptions = append(orchestratorOptions, orchestrator.WithHealthLocation(s.config.HealthLocation))
	}
	s.orchestrator = orchestrator.New(s.store, s.plans, s.policy, s.executor, s.auditor, orchestratorOptions...)
	s.runtime = &Runtime{orchestrator: s.orchestrator}
}

// ensureBaseSetup fills in defaults for anything the options left unset:
// fs backends under BaseURL when one is configured, memory otherwise.
func (s *Service) ensureBaseSetup() error {
	if s.policy == nil {
		s.policy = policy.FromConfig(&s.config.Policy)
	}
	if s.limiter == nil {
		limits := s.config.RateLimits
		if limits == (ratelimit.Config{}) {
			limits = ratelimit.DefaultConfig()
		}
		s.limiter = ratelimit.New(limits)
	}
	base := s.config.BaseURL
	if s.store == nil {
		if base != "" {
			store, err := reqfs.New(url.Join(base, "requests"))
			if err != nil {
				return fmt.Errorf("failed to create request store: %w", err)
			}
			s.store = store
		} else {
			s.store = reqmem.New()
		}
	}
	if s.auditor == nil {
		if base != "" {
			auditor, err := auditfs.New(url.Join(base, "audit"))
			if err != nil {
				return fmt.Errorf("failed to create audit log: %w", err)
			}
			s.auditor = auditor
		} else {
			s.auditor = auditmem.New()
		}
	}
	if s.ledger == nil {
		if base != "" {
			financial, err := ledgerfs.New(url.Join(base, "ledger"))
			if err != nil {
				return fmt.Errorf("failed to create ledger: %w", err)
			}
			s.ledger = financial
		} else {
			s.ledger = ledgermem.New()
		}
	}
	if s.plans == nil {
		s.plans = planmem.New()
	}
	if s.queue == nil {
		if base != "" {
			queue, err := msgfs.NewQueue[event.Event](afs.New(), msgfs.DefaultConfig(url.Join(base, "events")))
			if err != nil {
				return fmt.Errorf("failed to create event queue: %w", err)
			}
			s.queue = queue
		} else {
			s.queue = msgmem.NewQueue[event.Event](msgmem.DefaultConfig())
		}
	}
	if s.events == nil {
		s.events = event.New(s.queue)
	}
	return nil
}

// Err reports an assembly failure; a service with a non-nil Err must not be
// used.
func (s *Service) Err() error { return s.initErr }

// Runtime returns the control-loop handle.
func (s *Service) Runtime() *Runtime { return s.runtime }

// Intake returns the request intake surface.
func (s *Service) Intake() *intake.Service { return s.intake }

// Executor returns the execution engine.
func (s *Service) Executor() *executor.Service { return s.executor }

// Events returns the lifecycle event publisher.
func (s *Service) Events() *event.Service { return s.events }

// EventQueue returns the queue lifecycle events are published to.
func (s *Service) EventQueue() messaging.Queue[event.Event] { return s.queue }

// Store returns the request store.
func (s *Service) Store() reqdao.Store { return s.store }

// Audit returns the audit log.
func (s *Service) Audit() audit.Service { return s.auditor }

// Ledger returns the financial ledger.
func (s *Service) Ledger() ledger.Service { return s.ledger }

// RateLimiter returns the per-category limiter.
func (s *Service) RateLimiter() *ratelimit.Service { return s.limiter }

// SimulateOnly reports whether execution is gated to dry runs.
func (s *Service) SimulateOnly() bool { return s.simulateOnly.Load() }

// SetSimulateOnly toggles dry-run gating; it takes effect on the next
// execution attempt.
func (s *Service) SetSimulateOnly(simulate bool) { s.simulateOnly.Store(simulate) }

// RegisterHandler adds or replaces an action handler.
func (s *Service) RegisterHandler(h handler.Handler) { s.registry.Register(h) }

// Approve records a human approval arriving through the API surface.
func (s *Service) Approve(ctx context.Context, id, actor, reason string) error {
	return s.decide(ctx, id, actor, reason, true)
}

// Reject records a human rejection arriving through the API surface.
func (s *Service) Reject(ctx context.Context, id, actor, reason string) error {
	return s.decide(ctx, id, actor, reason, false)
}

func (s *Service) decide(ctx context.Context, id, actor, reason string, approved bool) error {
	now := clock.Now()
	if actor == "" {
		actor = audit.ActorHuman
	}
	to := mrequest.StageRejected
	result := audit.ResultRejected
	if approved {
		to = mrequest.StageApproved
		result = audit.ResultApproved
	}
	decision := &mrequest.Decision{Approved: approved, Actor: actor, Reason: reason, DecidedAt: now}
	err := s.store.Transition(ctx, id, mrequest.StagePendingApproval, to, func(r *mrequest.Request) {
		r.Decision = decision
	})
	if err != nil {
		return err
	}
	if s.auditor != nil {
		_ = s.auditor.Log(ctx, &audit.Entry{
			Timestamp: now,
			Actor:     actor,
			Target:    id,
			Result:    result,
			Metadata:  map[string]string{"reason": reason},
		})
	}
	req, err := s.store.Load(ctx, id)
	if err == nil {
		_ = s.events.PublishRequest(ctx, event.TopicRequestDecided, req, nil)
	}
	return nil
}

// ListByStage returns the requests currently in the given stage, highest
// priority first and oldest first within a tier.
func (s *Service) ListByStage(ctx context.Context, stage mrequest.Stage) ([]*mrequest.Request, error) {
	requests, err := s.store.ListByStage(ctx, stage)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(requests, func(i, j int) bool {
		if ri, rj := requests[i].Priority.Rank(), requests[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	return requests, nil
}

// CountsByStage returns the number of requests per lifecycle stage.
func (s *Service) CountsByStage(ctx context.Context) (map[mrequest.Stage]int, error) {
	counts := map[mrequest.Stage]int{}
	for _, stage := range mrequest.Stages {
		requests, err := s.store.ListByStage(ctx, stage)
		if err != nil {
			return nil, err
		}
		counts[stage] = len(requests)
	}
	return counts, nil
}
