package actiongate

import (
	"context"
	"sync"

	"github.com/actiongate/actiongate/service/orchestrator"
)

// Runtime controls the orchestrator loop of an assembled service.
type Runtime struct {
	orchestrator *orchestrator.Service

	mux    sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the polling loop in the background. It is a no-op when the
// loop is already running.
func (r *Runtime) Start(ctx context.Context) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	done := make(chan struct{})
	r.done = done
	go func() {
		defer close(done)
		_ = r.orchestrator.Start(ctx)
	}()
}

// Shutdown stops the loop and waits for the in-flight cycle to finish.
func (r *Runtime) Shutdown() {
	r.mux.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mux.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunCycle performs one sweep synchronously; useful for tests and for
// driving the pipeline without the background loop.
func (r *Runtime) RunCycle(ctx context.Context) (orchestrator.Stats, error) {
	return r.orchestrator.RunCycle(ctx)
}

// Health returns the current health snapshot.
func (r *Runtime) Health(ctx context.Context) (*orchestrator.Health, error) {
	return r.orchestrator.Snapshot(ctx)
}
