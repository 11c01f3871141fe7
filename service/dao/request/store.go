// Package request defines the persistence contract for action requests.
// Beyond generic CRUD it adds the one operation the lifecycle depends on:
// an atomic compare-and-swap stage transition, so that a concurrent human
// decision and an orchestrator sweep can never both claim the same request.
package request

import (
	"context"

	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/service/dao"
)

// Store is the request persistence contract.
type Store interface {
	dao.Service[string, mrequest.Request]

	// Transition atomically moves a request from stage `from` to stage `to`,
	// applying mutate (may be nil) to the stored copy before persisting.
	// It returns dao.ErrStageConflict when the stored stage is no longer
	// `from`, and dao.ErrNotFound when the request does not exist. The edge
	// itself must be legal per the request lifecycle.
	Transition(ctx context.Context, id string, from, to mrequest.Stage, mutate func(*mrequest.Request)) error

	// ListByStage returns requests currently in the given stage, ordered by
	// creation time (oldest first).
	ListByStage(ctx context.Context, stage mrequest.Stage) ([]*mrequest.Request, error)
}
