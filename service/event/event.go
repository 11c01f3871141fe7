// Package event publishes lifecycle notifications for requests and
// orchestration cycles over a messaging queue so external consumers can
// react without polling the stores.
package event

import (
	"context"
	"time"

	"github.com/actiongate/actiongate/internal/clock"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/service/messaging"
)

// Topic identifies a lifecycle event kind.
type Topic string

const (
	TopicRequestCreated  Topic = "request.created"
	TopicRequestPending  Topic = "request.pending"
	TopicRequestDecided  Topic = "request.decided"
	TopicRequestExpired  Topic = "request.expired"
	TopicRequestExecuted Topic = "request.executed"
	TopicCycleCompleted  Topic = "cycle.completed"
)

// Event describes a single lifecycle transition or cycle summary.
type Event struct {
	Topic      Topic             `json:"topic"`
	RequestID  string            `json:"requestId,omitempty"`
	ActionType string            `json:"actionType,omitempty"`
	Stage      string            `json:"stage,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
	At         time.Time         `json:"at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Service fans lifecycle events out to a queue. A nil *Service is a
// valid no-op publisher so callers need not guard every emit site.
type Service struct {
	queue messaging.Queue[Event]
}

// New returns a publisher backed by the supplied queue.
func New(queue messaging.Queue[Event]) *Service {
	return &Service{queue: queue}
}

// Publish emits an event, stamping At when the caller left it zero.
func (s *Service) Publish(ctx context.Context, evt Event) error {
	if s == nil || s.queue == nil {
		return nil
	}
	if evt.At.IsZero() {
		evt.At = clock.Now()
	}
	return s.queue.Publish(ctx, &evt)
}

// PublishRequest emits a request-scoped event derived from the current
// request state.
func (s *Service) PublishRequest(ctx context.Context, topic Topic, req *mrequest.Request, metadata map[string]string) error {
	if s == nil || req == nil {
		return nil
	}
	evt := Event{
		Topic:      topic,
		RequestID:  req.ID,
		ActionType: string(req.ActionType),
		Stage:      string(req.Stage),
		Metadata:   metadata,
	}
	if req.ExecutionResult != nil {
		evt.Outcome = string(req.ExecutionResult.Outcome)
	}
	return s.Publish(ctx, evt)
}

// Queue exposes the underlying queue for consumers.
func (s *Service) Queue() messaging.Queue[Event] {
	if s == nil {
		return nil
	}
	return s.queue
}
