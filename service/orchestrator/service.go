// Package orchestrator drives the approval pipeline: a single polling loop
// promotes intake requests, expires stale approvals, observes human
// decisions and hands eligible approved requests to the executor. Cycles
// never overlap; every cycle ends with a summary audit entry and an
// optional health snapshot.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/model/plan"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/policy"
	"github.com/actiongate/actiongate/service/audit"
	"github.com/actiongate/actiongate/service/dao"
	reqdao "github.com/actiongate/actiongate/service/dao/request"
	"github.com/actiongate/actiongate/service/event"
	"github.com/actiongate/actiongate/service/executor"
	"github.com/actiongate/actiongate/tracing"
)

// DefaultPollInterval is the cadence of the control loop.
const DefaultPollInterval = 15 * time.Second

// maxAttempts mirrors the executor's retry budget: a request that failed
// this many consecutive handler attempts is left for human remediation and
// skipped by the sweep.
const maxAttempts = 2

// Stats summarises one orchestration cycle.
type Stats struct {
	Promoted     int `json:"promoted"`
	AutoApproved int `json:"autoApproved"`
	Expired      int `json:"expired"`
	Decided      int `json:"decided"`
	Executed     int `json:"executed"`
	Failed       int `json:"failed"`
	Reconciled   int `json:"reconciled"`
}

// Health is the snapshot written after every cycle.
type Health struct {
	Status        string                 `json:"status"`
	StartedAt     time.Time              `json:"startedAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	UptimeSeconds int64                  `json:"uptimeSeconds"`
	Cycles        int                    `json:"cycles"`
	Executed      int                    `json:"executed"`
	Errors        int                    `json:"errors"`
	Stages        map[mrequest.Stage]int `json:"stages"`
}

// Service is the control loop.
type Service struct {
	store    reqdao.Store
	plans    dao.Service[string, plan.Plan]
	policy   *policy.Policy
	executor *executor.Service
	auditor  audit.Service
	events   *event.Service

	interval  time.Duration
	healthURL string
	fs        afs.Service

	mux       sync.Mutex // cycles never overlap
	startedAt time.Time
	cycles    int
	executed  int
	errors    int
}

// Option customises the orchestrator.
type Option func(*Service)

// WithEvents wires the lifecycle event publisher.
func WithEvents(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

// WithPollInterval overrides the loop cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithHealthLocation enables the per-cycle health snapshot at the given
// storage URL (any scheme viant/afs understands).
func WithHealthLocation(URL string) Option {
	return func(s *Service) { s.healthURL = URL }
}

// New creates an orchestrator.
func New(store reqdao.Store, plans dao.Service[string, plan.Plan], pol *policy.Policy, exec *executor.Service, auditor audit.Service, options ...Option) *Service {
	s := &Service{
		store:    store,
		plans:    plans,
		policy:   pol,
		executor: exec,
		auditor:  auditor,
		interval: DefaultPollInterval,
		fs:       afs.New(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Start runs the control loop until the context is cancelled. The cycle
// body executes synchronously inside the select so runs never overlap.
func (s *Service) Start(ctx context.Context) error {
	s.startedAt = clock.Now()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunCycle(ctx); err != nil {
				log.Printf("[orchestrator] cycle failed: %v", err)
			}
		}
	}
}

// RunCycle performs one full sweep and returns its statistics. Errors on
// individual requests are contained and counted; only store-level listing
// failures abort the cycle.
func (s *Service) RunCycle(ctx context.Context) (Stats, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.cycle", "INTERNAL")
	stats, err := s.runCycle(ctx)
	tracing.EndSpan(span.WithAttributes(map[string]string{
		"cycle.executed": strconv.Itoa(stats.Executed),
		"cycle.failed":   strconv.Itoa(stats.Failed),
	}), err)
	return stats, err
}

func (s *Service) runCycle(ctx context.Context) (Stats, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	var stats Stats
	now := clock.Now()

	if err := s.promoteIntake(ctx, now, &stats); err != nil {
		return stats, err
	}
	if err := s.expirePending(ctx, now, &stats); err != nil {
		return stats, err
	}
	if err := s.observeDecisions(ctx, now, &stats); err != nil {
		return stats, err
	}
	if err := s.executeApproved(ctx, &stats); err != nil {
		return stats, err
	}
	if err := s.reconcilePlans(ctx, &stats); err != nil {
		return stats, err
	}

	s.cycles++
	s.executed += stats.Executed
	s.errors += stats.Failed
	s.writeCycleSummary(ctx, stats)
	s.writeHealth(ctx)
	_ = s.events.Publish(ctx, event.Event{Topic: event.TopicCycleCompleted, Metadata: map[string]string{
		"executed": strconv.Itoa(stats.Executed),
		"failed":   strconv.Itoa(stats.Failed),
	}})
	return stats, nil
}

// promoteIntake moves new requests out of intake: actions that need
// sign-off go to pending approval with an expiry stamped; unconditionally
// safe ones are auto-approved.
func (s *Service) promoteIntake(ctx context.Context, now time.Time, stats *Stats) error {
	requests, err := s.store.ListByStage(ctx, mrequest.StageIntake)
	if err != nil {
		return err
	}
	for _, req := range requests {
		if s.policy.RequiresApproval(req) {
			expires := req.CreatedAt.Add(s.policy.Window(req.ActionType))
			err = s.store.Transition(ctx, req.ID, mrequest.StageIntake, mrequest.StagePendingApproval, func(r *mrequest.Request) {
				r.ExpiresAt = &expires
			})
			if err != nil {
				s.containRequestError(req, "promote", err, stats)
				continue
			}
			req.Stage = mrequest.StagePendingApproval
			req.ExpiresAt = &expires
			stats.Promoted++
			s.writeAudit(ctx, req, audit.ActorOrchestrator, audit.ResultPendingApproval, map[string]string{
				"expiresAt": expires.Format(time.RFC3339),
			})
			_ = s.events.PublishRequest(ctx, event.TopicRequestPending, req, nil)
			continue
		}
		decision := &mrequest.Decision{Approved: true, Actor: audit.ActorOrchestrator, Reason: "known recipient", DecidedAt: now}
		err = s.store.Transition(ctx, req.ID, mrequest.StageIntake, mrequest.StageApproved, func(r *mrequest.Request) {
			r.Decision = decision
		})
		if err != nil {
			s.containRequestError(req, "auto-approve", err, stats)
			continue
		}
		req.Stage = mrequest.StageApproved
		req.Decision = decision
		stats.AutoApproved++
		s.writeAudit(ctx, req, audit.ActorOrchestrator, audit.ResultApproved, map[string]string{"auto": "true"})
		_ = s.events.PublishRequest(ctx, event.TopicRequestDecided, req, nil)
	}
	return nil
}

// expirePending rejects pending requests whose approval window lapsed
// without a human decision.
func (s *Service) expirePending(ctx context.Context, now time.Time, stats *Stats) error {
	requests, err := s.store.ListByStage(ctx, mrequest.StagePendingApproval)
	if err != nil {
		return err
	}
	for _, req := range requests {
		if !policy.IsExpired(req, now) {
			continue
		}
		err = s.store.Transition(ctx, req.ID, mrequest.StagePendingApproval, mrequest.StageRejected, func(r *mrequest.Request) {
			r.Tag = mrequest.TagExpired
		})
		if err != nil {
			s.containRequestError(req, "expire", err, stats)
			continue
		}
		req.Stage = mrequest.StageRejected
		req.Tag = mrequest.TagExpired
		stats.Expired++
		s.writeAudit(ctx, req, audit.ActorOrchestrator, audit.ResultExpired, nil)
		_ = s.events.PublishRequest(ctx, event.TopicRequestExpired, req, nil)
	}
	return nil
}

// observeDecisions records human decisions that arrived through an external
// surface (a file move between stage directories, an API call). The
// orchestrator never decides; it only stamps what it finds.
func (s *Service) observeDecisions(ctx context.Context, now time.Time, stats *Stats) error {
	approved, err := s.store.ListByStage(ctx, mrequest.StageApproved)
	if err != nil {
		return err
	}
	for _, req := range approved {
		if req.Decision != nil {
			continue
		}
		decision := &mrequest.Decision{Approved: true, Actor: audit.ActorHuman, DecidedAt: now}
		err = s.store.Transition(ctx, req.ID, mrequest.StageApproved, mrequest.StageApproved, func(r *mrequest.Request) {
			r.Decision = decision
		})
		if err != nil {
			s.containRequestError(req, "observe", err, stats)
			continue
		}
		req.Decision = decision
		stats.Decided++
		s.writeAudit(ctx, req, audit.ActorHuman, audit.ResultApproved, nil)
		_ = s.events.PublishRequest(ctx, event.TopicRequestDecided, req, nil)
	}

	rejected, err := s.store.ListByStage(ctx, mrequest.StageRejected)
	if err != nil {
		return err
	}
	for _, req := range rejected {
		// only a human move leaves a rejected request with no tag, no
		// decision and no execution result
		if req.Decision != nil || req.Tag != "" || req.ExecutionResult != nil {
			continue
		}
		req.Decision = &mrequest.Decision{Approved: false, Actor: audit.ActorHuman, DecidedAt: now}
		req.UpdatedAt = now
		if err = s.store.Save(ctx, req); err != nil {
			s.containRequestError(req, "observe", err, stats)
			continue
		}
		stats.Decided++
		s.writeAudit(ctx, req, audit.ActorHuman, audit.ResultRejected, nil)
		_ = s.events.PublishRequest(ctx, event.TopicRequestDecided, req, nil)
	}
	return nil
}

// executeApproved hands eligible approved requests to the executor, highest
// priority first and oldest first within a tier.
func (s *Service) executeApproved(ctx context.Context, stats *Stats) error {
	requests, err := s.store.ListByStage(ctx, mrequest.StageApproved)
	if err != nil {
		return err
	}
	sort.SliceStable(requests, func(i, j int) bool {
		if ri, rj := requests[i].Priority.Rank(), requests[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.Before(requests[j].CreatedAt)
		}
		return requests[i].ID < requests[j].ID
	})
	for _, req := range requests {
		if req.Attempts >= maxAttempts {
			continue
		}
		result, err := s.executor.Execute(ctx, req)
		if err != nil {
			stats.Failed++
			log.Printf("[orchestrator] execution of %v: %v", req.ID, err)
			continue
		}
		if result != nil && result.Outcome.Executed() {
			stats.Executed++
		}
	}
	return nil
}

// reconcilePlans completes plan artifacts linked to done requests.
func (s *Service) reconcilePlans(ctx context.Context, stats *Stats) error {
	if s.plans == nil {
		return nil
	}
	done, err := s.store.ListByStage(ctx, mrequest.StageDone)
	if err != nil {
		return err
	}
	for _, req := range done {
		if req.LinkedPlanRef == "" {
			continue
		}
		linked, err := s.plans.Load(ctx, req.LinkedPlanRef)
		if err != nil {
			if !errors.Is(err, dao.ErrNotFound) {
				log.Printf("[orchestrator] failed to load plan %v: %v", req.LinkedPlanRef, err)
			}
			continue
		}
		if linked == nil || linked.Status != plan.StatusOpen {
			continue
		}
		linked.Complete(clock.Now())
		linked.RequestID = req.ID
		if err = s.plans.Save(ctx, linked); err != nil {
			log.Printf("[orchestrator] failed to reconcile plan %v: %v", req.LinkedPlanRef, err)
			continue
		}
		stats.Reconciled++
	}
	return nil
}

func (s *Service) containRequestError(req *mrequest.Request, op string, err error, stats *Stats) {
	stats.Failed++
	log.Printf("[orchestrator] %v of %v: %v", op, req.ID, err)
}

func (s *Service) writeAudit(ctx context.Context, req *mrequest.Request, actor, result string, metadata map[string]string) {
	if s.auditor == nil {
		return
	}
	entry := &audit.Entry{
		Timestamp:  clock.Now(),
		ActionType: string(req.ActionType),
		Actor:      actor,
		Target:     req.ID,
		Result:     result,
		Metadata:   metadata,
	}
	if err := s.auditor.Log(ctx, entry); err != nil {
		log.Printf("[orchestrator] failed to write audit entry for %v: %v", req.ID, err)
	}
}

func (s *Service) writeCycleSummary(ctx context.Context, stats Stats) {
	if s.auditor == nil {
		return
	}
	entry := &audit.Entry{
		Timestamp: clock.Now(),
		Actor:     audit.ActorOrchestrator,
		Result:    audit.ResultCycle,
		Metadata: map[string]string{
			"promoted":     strconv.Itoa(stats.Promoted),
			"autoApproved": strconv.Itoa(stats.AutoApproved),
			"expired":      strconv.Itoa(stats.Expired),
			"decided":      strconv.Itoa(stats.Decided),
			"executed":     strconv.Itoa(stats.Executed),
			"failed":       strconv.Itoa(stats.Failed),
			"reconciled":   strconv.Itoa(stats.Reconciled),
		},
	}
	if err := s.auditor.Log(ctx, entry); err != nil {
		log.Printf("[orchestrator] failed to write cycle summary: %v", err)
	}
}

// Snapshot returns the current health view.
func (s *Service) Snapshot(ctx context.Context) (*Health, error) {
	now := clock.Now()
	startedAt := s.startedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	health := &Health{
		Status:        "ok",
		StartedAt:     startedAt,
		UpdatedAt:     now,
		UptimeSeconds: int64(now.Sub(startedAt) / time.Second),
		Cycles:        s.cycles,
		Executed:      s.executed,
		Errors:        s.errors,
		Stages:        map[mrequest.Stage]int{},
	}
	for _, stage := range mrequest.Stages {
		requests, err := s.store.ListByStage(ctx, stage)
		if err != nil {
			return nil, err
		}
		health.Stages[stage] = len(requests)
	}
	return health, nil
}

func (s *Service) writeHealth(ctx context.Context) {
	if s.healthURL == "" {
		return
	}
	health, err := s.Snapshot(ctx)
	if err != nil {
		log.Printf("[orchestrator] failed to build health snapshot: %v", err)
		return
	}
	data, err := json.MarshalIndent(health, "", "  ")
	if err != nil {
		log.Printf("[orchestrator] failed to encode health snapshot: %v", err)
		return
	}
	if err = s.fs.Upload(ctx, s.healthURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		log.Printf("[orchestrator] failed to write health snapshot: %v", err)
	}
}
