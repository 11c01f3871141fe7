package handler

import (
	"context"

	mrequest "github.com/actiongate/actiongate/model/request"
)

// Nop is a handler that performs no external side effect. It stands in for
// transports that are wired outside this module; the default assembly
// registers one per action type so that live mode completes end to end.
type Nop struct {
	Action mrequest.ActionType

	// Err, when set, is returned from every Handle call.
	Err error
}

var _ Handler = (*Nop)(nil)

// NewNop returns a no-op handler for the given action type.
func NewNop(action mrequest.ActionType) *Nop {
	return &Nop{Action: action}
}

func (n *Nop) ActionType() mrequest.ActionType { return n.Action }

func (n *Nop) Handle(ctx context.Context, req *mrequest.Request, payload mrequest.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.Err
}
