// Package handler defines the contract for action handlers and a registry
// that maps action types onto them.
package handler

import (
	"context"
	"reflect"
	"sync"

	"github.com/viant/x"

	mrequest "github.com/actiongate/actiongate/model/request"
)

// Handler performs the external side effect for a single action type. A
// handler is only ever invoked with a validated payload of the shape
// registered for its action type, and only in live mode.
type Handler interface {
	// ActionType returns the action type this handler serves.
	ActionType() mrequest.ActionType

	// Handle performs the action. The context carries the per-attempt
	// timeout; a handler that blocks past it must return ctx.Err().
	Handle(ctx context.Context, req *mrequest.Request, payload mrequest.Payload) error
}

// Registry maps action types to handlers and keeps a type registry of the
// payload shapes they accept.
type Registry struct {
	mux      sync.RWMutex
	handlers map[mrequest.ActionType]Handler
	types    *x.Registry
}

// NewRegistry creates a registry pre-populated with the known payload
// shapes and the supplied handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{
		handlers: map[mrequest.ActionType]Handler{},
		types:    x.NewRegistry(),
	}
	r.types.Register(x.NewType(reflect.TypeOf(mrequest.EmailPayload{}), x.WithName(string(mrequest.ActionEmailSend))))
	r.types.Register(x.NewType(reflect.TypeOf(mrequest.PaymentPayload{}), x.WithName(string(mrequest.ActionPayment))))
	r.types.Register(x.NewType(reflect.TypeOf(mrequest.SocialPayload{}), x.WithName(string(mrequest.ActionSocialPost))))
	r.types.Register(x.NewType(reflect.TypeOf(mrequest.FileDeletePayload{}), x.WithName(string(mrequest.ActionFileDelete))))
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds or replaces the handler for its action type.
func (r *Registry) Register(h Handler) {
	if h == nil {
		return
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	r.handlers[h.ActionType()] = h
}

// Lookup returns the handler registered for the action type.
func (r *Registry) Lookup(actionType mrequest.ActionType) (Handler, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	h, ok := r.handlers[actionType]
	return h, ok
}

// PayloadType returns the Go type of the payload accepted by the action
// type, when one is registered.
func (r *Registry) PayloadType(actionType mrequest.ActionType) (reflect.Type, bool) {
	aType := r.types.Lookup(string(actionType))
	if aType == nil {
		return nil, false
	}
	return aType.Type, true
}
