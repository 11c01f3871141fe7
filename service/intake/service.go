// Package intake admits new action requests into the pipeline. Every
// request enters at the intake stage regardless of origin; promotion to
// pending approval or straight to approved is the orchestrator's job.
package intake

import (
	"context"
	"fmt"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/internal/idgen"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/service/audit"
	reqdao "github.com/actiongate/actiongate/service/dao/request"
	"github.com/actiongate/actiongate/service/event"
)

// Service persists incoming requests and announces their arrival.
type Service struct {
	store  reqdao.Store
	audit  audit.Service
	events *event.Service
}

// New creates an intake service. The event publisher may be nil.
func New(store reqdao.Store, auditor audit.Service, events *event.Service) *Service {
	return &Service{store: store, audit: auditor, events: events}
}

// Option mutates a request before it is persisted.
type Option func(*mrequest.Request)

// WithSourceRef records where the request came from.
func WithSourceRef(ref string) Option {
	return func(r *mrequest.Request) { r.SourceRef = ref }
}

// WithLinkedPlan associates the request with a plan.
func WithLinkedPlan(planID string) Option {
	return func(r *mrequest.Request) { r.LinkedPlanRef = planID }
}

// WithID overrides the generated identifier.
func WithID(id string) Option {
	return func(r *mrequest.Request) { r.ID = id }
}

// Enqueue validates the payload, persists a new request at the intake
// stage and returns its identifier.
func (s *Service) Enqueue(ctx context.Context, actionType mrequest.ActionType, priority mrequest.Priority, payload mrequest.Payload, options ...Option) (string, error) {
	now := clock.Now()
	req := &mrequest.Request{
		ID:         idgen.New(now),
		ActionType: actionType,
		Stage:      mrequest.StageIntake,
		Priority:   priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Priority == "" {
		req.Priority = mrequest.PriorityMedium
	}
	if payload != nil {
		if err := payload.Validate(); err != nil {
			return "", fmt.Errorf("invalid %v payload: %w", actionType, err)
		}
		if err := mrequest.EncodePayload(req, payload); err != nil {
			return "", err
		}
	}
	for _, option := range options {
		option(req)
	}
	if err := s.store.Save(ctx, req); err != nil {
		return "", fmt.Errorf("failed to save request: %w", err)
	}
	if s.audit != nil {
		entry := &audit.Entry{
			Timestamp:  now,
			ActionType: string(actionType),
			Actor:      audit.ActorIntake,
			Target:     req.ID,
			Result:     audit.ResultIntake,
			Metadata:   map[string]string{"priority": string(req.Priority)},
		}
		if req.SourceRef != "" {
			entry.Metadata["source"] = req.SourceRef
		}
		_ = s.audit.Log(ctx, entry)
	}
	_ = s.events.PublishRequest(ctx, event.TopicRequestCreated, req, nil)
	return req.ID, nil
}
