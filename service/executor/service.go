// Package executor runs approved requests through their precondition gates
// and dispatches them to action handlers. Every attempt leaves exactly one
// audit entry; a done request short-circuits with its stored result.
package executor

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/internal/idgen"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/policy"
	"github.com/actiongate/actiongate/service/audit"
	"github.com/actiongate/actiongate/service/dao"
	reqdao "github.com/actiongate/actiongate/service/dao/request"
	"github.com/actiongate/actiongate/service/event"
	"github.com/actiongate/actiongate/service/executor/handler"
	"github.com/actiongate/actiongate/service/ledger"
	"github.com/actiongate/actiongate/service/ratelimit"
	"github.com/actiongate/actiongate/tracing"
)

const (
	// DefaultHandlerTimeout bounds a single live handler dispatch.
	DefaultHandlerTimeout = 120 * time.Second

	// maxAttempts is the number of consecutive handler failures tolerated
	// before an alert is raised alongside the regular audit entry.
	maxAttempts = 2
)

// Transition tags recorded for precondition denials.
const (
	tagUnknownAction    = "unknown_action"
	tagProtectedPath    = "protected_path"
	tagValidationFailed = "validation_failed"
)

// Service executes approved requests.
type Service struct {
	store    reqdao.Store
	policy   *policy.Policy
	limiter  *ratelimit.Service
	registry *handler.Registry
	auditor  audit.Service
	ledger   ledger.Service
	events   *event.Service

	simulateOnly   func() bool
	handlerTimeout time.Duration
}

// Option customises the executor.
type Option func(*Service)

// WithLedger wires the financial ledger; payment executions record into it.
func WithLedger(l ledger.Service) Option {
	return func(s *Service) { s.ledger = l }
}

// WithEvents wires the lifecycle event publisher.
func WithEvents(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

// WithSimulateOnly supplies the dry-run switch; it is consulted once per
// attempt so a runtime toggle takes effect on the next execution.
func WithSimulateOnly(fn func() bool) Option {
	return func(s *Service) { s.simulateOnly = fn }
}

// WithHandlerTimeout bounds a single live handler dispatch.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.handlerTimeout = timeout
		}
	}
}

// New creates an executor. Simulate-only is the default until an explicit
// switch is supplied: executing real side effects requires opting in.
func New(store reqdao.Store, pol *policy.Policy, limiter *ratelimit.Service, registry *handler.Registry, auditor audit.Service, options ...Option) *Service {
	s := &Service{
		store:          store,
		policy:         pol,
		limiter:        limiter,
		registry:       registry,
		auditor:        auditor,
		simulateOnly:   func() bool { return true },
		handlerTimeout: DefaultHandlerTimeout,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Execute runs one attempt for an approved request and returns the attempt
// result. Precondition denials are reported through the sentinel errors in
// this package; the request is transitioned and audited before returning.
func (s *Service) Execute(ctx context.Context, req *mrequest.Request) (*mrequest.ExecutionResult, error) {
	if req == nil {
		return nil, dao.ErrNilEntity
	}
	ctx, span := tracing.StartSpan(ctx, "executor.execute", "INTERNAL")
	result, err := s.execute(ctx, req)
	tracing.EndSpan(span.WithAttributes(map[string]string{
		"request.id":     req.ID,
		"request.action": string(req.ActionType),
	}), err)
	return result, err
}

func (s *Service) execute(ctx context.Context, req *mrequest.Request) (*mrequest.ExecutionResult, error) {
	if req.ExecutionResult != nil && req.ExecutionResult.Outcome.Executed() {
		return req.ExecutionResult, nil
	}
	if req.Stage != mrequest.StageApproved {
		return nil, fmt.Errorf("request %v is in stage %v, not %v", req.ID, req.Stage, mrequest.StageApproved)
	}
	now := clock.Now()
	dryRun := s.simulateOnly()

	// Expiry is re-checked at execution time: a stale approval must never
	// reach a handler, not even a simulated one.
	if policy.IsExpired(req, now) {
		result := s.newResult(mrequest.OutcomeExpired, now, dryRun)
		result.Tag = mrequest.TagExpiredBeforeExecution
		result.Error = fmt.Sprintf("approval expired at %v", req.ExpiresAt.Format(time.RFC3339))
		if err := s.settle(ctx, req, mrequest.StageRejected, result.Tag, result); err != nil {
			return nil, err
		}
		s.writeAudit(ctx, req, audit.ResultExpired, dryRun, nil)
		_ = s.events.PublishRequest(ctx, event.TopicRequestExpired, req, nil)
		return result, fmt.Errorf("%w: request %v", ErrExpired, req.ID)
	}

	if !s.limiter.CheckAndReserve(req.ActionType, now) {
		retryAfter := s.limiter.RetryAfter(req.ActionType, now)
		result := s.newResult(mrequest.OutcomeRateLimited, now, dryRun)
		result.Tag = mrequest.TagRateLimited
		result.Error = fmt.Sprintf("rate limit exceeded for %v, retry after %v", req.ActionType, retryAfter.Round(time.Second))
		if err := s.settle(ctx, req, mrequest.StageApproved, result.Tag, result); err != nil {
			return nil, err
		}
		s.writeAudit(ctx, req, audit.ResultRateLimited, dryRun, map[string]string{
			"retryAfterSeconds": strconv.Itoa(int(retryAfter / time.Second)),
		})
		return result, fmt.Errorf("%w: %s", ErrRateLimited, result.Error)
	}

	h, ok := s.registry.Lookup(req.ActionType)
	if !ok || req.ActionType == mrequest.ActionUnknown {
		result := s.newResult(mrequest.OutcomeFailed, now, dryRun)
		result.Tag = tagUnknownAction
		result.Error = fmt.Sprintf("no handler for action type %q", req.ActionType)
		if err := s.settle(ctx, req, mrequest.StageRejected, result.Tag, result); err != nil {
			return nil, err
		}
		s.writeAudit(ctx, req, audit.ResultDenied, dryRun, nil)
		return result, fmt.Errorf("%w: %v", ErrUnknownActionType, req.ActionType)
	}

	payload, err := mrequest.DecodePayload(req)
	if err == nil {
		err = payload.Validate()
	}
	if err == nil && req.ActionType == mrequest.ActionFileDelete {
		if target := payload.(*mrequest.FileDeletePayload).Path; s.policy.IsProtected(target) {
			result := s.newResult(mrequest.OutcomeFailed, now, dryRun)
			result.Tag = tagProtectedPath
			result.Error = fmt.Sprintf("path %q is protected", target)
			if serr := s.settle(ctx, req, mrequest.StageRejected, result.Tag, result); serr != nil {
				return nil, serr
			}
			s.writeAudit(ctx, req, audit.ResultDenied, dryRun, map[string]string{"path": target})
			return result, fmt.Errorf("%w: %v", ErrProtectedResource, target)
		}
	}
	if err != nil {
		result := s.newResult(mrequest.OutcomeFailed, now, dryRun)
		result.Tag = tagValidationFailed
		result.Error = err.Error()
		if serr := s.settle(ctx, req, mrequest.StageRejected, result.Tag, result); serr != nil {
			return nil, serr
		}
		s.writeAudit(ctx, req, audit.ResultFailed, dryRun, nil)
		return result, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if dryRun {
		result := s.newResult(mrequest.OutcomeSimulated, now, true)
		if err := s.settle(ctx, req, mrequest.StageDone, "", result); err != nil {
			return nil, err
		}
		s.recordLedger(ctx, req, payload, now, true)
		s.writeAudit(ctx, req, audit.ResultSimulated, true, nil)
		_ = s.events.PublishRequest(ctx, event.TopicRequestExecuted, req, nil)
		return result, nil
	}

	hctx, cancel := context.WithTimeout(ctx, s.handlerTimeout)
	herr := h.Handle(hctx, req, payload)
	cancel()
	if herr != nil {
		attempts := req.Attempts + 1
		result := s.newResult(mrequest.OutcomeFailed, now, false)
		result.Error = herr.Error()
		if err := s.store.Transition(ctx, req.ID, mrequest.StageApproved, mrequest.StageApproved, func(r *mrequest.Request) {
			r.Attempts = attempts
			r.LastError = herr.Error()
			r.ExecutionResult = result
		}); err != nil {
			return nil, err
		}
		req.Attempts = attempts
		req.LastError = herr.Error()
		req.ExecutionResult = result
		metadata := map[string]string{"attempt": strconv.Itoa(attempts)}
		if attempts >= maxAttempts {
			metadata["alert"] = "handler_failure"
			log.Printf("[executor] alert: request %v failed %v consecutive attempts: %v", req.ID, attempts, herr)
			_ = s.events.PublishRequest(ctx, event.TopicRequestExecuted, req, metadata)
		}
		s.writeAudit(ctx, req, audit.ResultFailed, false, metadata)
		return result, fmt.Errorf("%w: %v", ErrHandler, herr)
	}

	result := s.newResult(mrequest.OutcomeSuccess, now, false)
	if err := s.settle(ctx, req, mrequest.StageDone, "", result); err != nil {
		return nil, err
	}
	s.recordLedger(ctx, req, payload, now, false)
	s.writeAudit(ctx, req, audit.ResultSuccess, false, nil)
	_ = s.events.PublishRequest(ctx, event.TopicRequestExecuted, req, nil)
	return result, nil
}

func (s *Service) newResult(outcome mrequest.Outcome, now time.Time, dryRun bool) *mrequest.ExecutionResult {
	return &mrequest.ExecutionResult{Outcome: outcome, ExecutedAt: now, DryRun: dryRun}
}

// settle transitions the request and stores the attempt result, keeping the
// in-memory copy aligned with what was persisted.
func (s *Service) settle(ctx context.Context, req *mrequest.Request, to mrequest.Stage, tag string, result *mrequest.ExecutionResult) error {
	err := s.store.Transition(ctx, req.ID, mrequest.StageApproved, to, func(r *mrequest.Request) {
		r.Tag = tag
		r.ExecutionResult = result
	})
	if err != nil {
		return fmt.Errorf("failed to settle request %v: %w", req.ID, err)
	}
	req.Stage = to
	req.Tag = tag
	req.ExecutionResult = result
	req.UpdatedAt = result.ExecutedAt
	return nil
}

func (s *Service) recordLedger(ctx context.Context, req *mrequest.Request, payload mrequest.Payload, now time.Time, simulated bool) {
	if s.ledger == nil || req.ActionType != mrequest.ActionPayment {
		return
	}
	payment, ok := payload.(*mrequest.PaymentPayload)
	if !ok {
		return
	}
	record := &ledger.Record{
		ID:         idgen.New(now),
		RequestID:  req.ID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		Recipient:  payment.Recipient,
		Reference:  payment.Reference,
		Simulated:  simulated,
		RecordedAt: now,
	}
	if err := s.ledger.Record(ctx, record); err != nil {
		log.Printf("[executor] failed to record ledger entry for %v: %v", req.ID, err)
	}
}

func (s *Service) writeAudit(ctx context.Context, req *mrequest.Request, result string, dryRun bool, metadata map[string]string) {
	if s.auditor == nil {
		return
	}
	entry := &audit.Entry{
		Timestamp:  clock.Now(),
		ActionType: string(req.ActionType),
		Actor:      audit.ActorExecutor,
		Target:     req.ID,
		DryRun:     dryRun,
		Result:     result,
		Metadata:   metadata,
	}
	if err := s.auditor.Log(ctx, entry); err != nil {
		log.Printf("[executor] failed to write audit entry for %v: %v", req.ID, err)
	}
}
