package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/actiongate/actiongate/internal/clock"
	"github.com/actiongate/actiongate/model/plan"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/policy"
	"github.com/actiongate/actiongate/service/audit"
	auditmem "github.com/actiongate/actiongate/service/audit/memory"
	planmem "github.com/actiongate/actiongate/service/dao/plan/memory"
	reqmem "github.com/actiongate/actiongate/service/dao/request/memory"
	"github.com/actiongate/actiongate/service/executor"
	"github.com/actiongate/actiongate/service/executor/handler"
	"github.com/actiongate/actiongate/service/intake"
	ledgermem "github.com/actiongate/actiongate/service/ledger/memory"
	"github.com/actiongate/actiongate/service/ratelimit"
)

func TestService_EndToEnd(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return now }
	defer func() { clock.NowFunc = time.Now }()

	store := reqmem.New()
	plans := planmem.New()
	auditor := auditmem.New()
	financial := ledgermem.New()
	pol := policy.FromConfig(&policy.Config{KnownRecipients: []string{"team@example.com"}})
	registry := handler.NewRegistry(
		handler.NewNop(mrequest.ActionEmailSend),
		handler.NewNop(mrequest.ActionPayment),
		handler.NewNop(mrequest.ActionSocialPost),
		handler.NewNop(mrequest.ActionFileDelete),
	)
	exec := executor.New(store, pol, ratelimit.New(ratelimit.DefaultConfig()), registry, auditor,
		executor.WithLedger(financial))

	healthPath := filepath.Join(t.TempDir(), "health.json")
	service := New(store, plans, pol, exec, auditor, WithHealthLocation(healthPath))

	ctx := context.Background()
	assert.Nil(t, plans.Save(ctx, &plan.Plan{ID: "plan-1", Title: "pay invoice", Status: plan.StatusOpen, CreatedAt: now}))

	in := intake.New(store, auditor, nil)
	paymentID, err := in.Enqueue(ctx, mrequest.ActionPayment, mrequest.PriorityHigh,
		&mrequest.PaymentPayload{Amount: 120, Currency: "USD", Recipient: "acme", Reference: "inv-9"},
		intake.WithLinkedPlan("plan-1"))
	assert.Nil(t, err)
	now = now.Add(time.Millisecond)
	autoID, err := in.Enqueue(ctx, mrequest.ActionEmailSend, mrequest.PriorityMedium,
		&mrequest.EmailPayload{To: "team@example.com", Subject: "update", Body: "done"})
	assert.Nil(t, err)
	now = now.Add(time.Millisecond)
	pendingID, err := in.Enqueue(ctx, mrequest.ActionEmailSend, mrequest.PriorityLow,
		&mrequest.EmailPayload{To: "stranger@example.org", Subject: "hi", Body: "intro"})
	assert.Nil(t, err)

	// cycle 1: promotion, auto-approve, simulated execution of the email
	stats, err := service.RunCycle(ctx)
	assert.Nil(t, err)
	assert.EqualValues(t, 2, stats.Promoted)
	assert.EqualValues(t, 1, stats.AutoApproved)
	assert.EqualValues(t, 1, stats.Executed)

	auto, err := store.Load(ctx, autoID)
	assert.Nil(t, err)
	assert.EqualValues(t, mrequest.StageDone, auto.Stage)
	assert.True(t, auto.ExecutionResult.DryRun)

	payment, err := store.Load(ctx, paymentID)
	assert.Nil(t, err)
	assert.EqualValues(t, mrequest.StagePendingApproval, payment.Stage)
	if assert.NotNil(t, payment.ExpiresAt) {
		assert.EqualValues(t, payment.CreatedAt.Add(policy.DefaultApprovalWindow), *payment.ExpiresAt)
	}

	// a human approves the payment through the store surface
	assert.Nil(t, store.Transition(ctx, paymentID, mrequest.StagePendingApproval, mrequest.StageApproved, nil))

	// cycle 2: decision observed, payment simulated, plan reconciled
	stats, err = service.RunCycle(ctx)
	assert.Nil(t, err)
	assert.EqualValues(t, 1, stats.Decided)
	assert.EqualValues(t, 1, stats.Executed)
	assert.EqualValues(t, 1, stats.Reconciled)

	payment, _ = store.Load(ctx, paymentID)
	assert.EqualValues(t, mrequest.StageDone, payment.Stage)
	if assert.NotNil(t, payment.Decision) {
		assert.True(t, payment.Decision.Approved)
		assert.EqualValues(t, audit.ActorHuman, payment.Decision.Actor)
	}

	records, _ := financial.List(ctx)
	if assert.EqualValues(t, 1, len(records)) {
		assert.True(t, records[0].Simulated)
		assert.EqualValues(t, paymentID, records[0].RequestID)
	}

	reconciled, err := plans.Load(ctx, "plan-1")
	assert.Nil(t, err)
	assert.EqualValues(t, plan.StatusCompleted, reconciled.Status)
	assert.EqualValues(t, paymentID, reconciled.RequestID)

	// cycle 3, a day later: the unapproved email expires
	now = now.Add(policy.DefaultApprovalWindow + time.Second)
	stats, err = service.RunCycle(ctx)
	assert.Nil(t, err)
	assert.EqualValues(t, 1, stats.Expired)

	expired, _ := store.Load(ctx, pendingID)
	assert.EqualValues(t, mrequest.StageRejected, expired.Stage)
	assert.EqualValues(t, mrequest.TagExpired, expired.Tag)

	// cycle summaries and the health snapshot reflect all three cycles
	var summaries int
	for _, entry := range auditor.All() {
		if entry.Result == audit.ResultCycle {
			summaries++
		}
	}
	assert.EqualValues(t, 3, summaries)

	data, err := os.ReadFile(healthPath)
	assert.Nil(t, err)
	var health Health
	assert.Nil(t, json.Unmarshal(data, &health))
	assert.EqualValues(t, "ok", health.Status)
	assert.EqualValues(t, 3, health.Cycles)
	assert.EqualValues(t, 2, health.Executed)
	assert.EqualValues(t, 2, health.Stages[mrequest.StageDone])
	assert.EqualValues(t, 1, health.Stages[mrequest.StageRejected])
}

func TestService_ObserveHumanRejection(t *testing.T) {
	store := reqmem.New()
	auditor := auditmem.New()
	pol := policy.FromConfig(nil)
	exec := executor.New(store, pol, ratelimit.New(ratelimit.DefaultConfig()), handler.NewRegistry(), auditor)
	service := New(store, planmem.New(), pol, exec, auditor)

	ctx := context.Background()
	in := intake.New(store, nil, nil)
	id, err := in.Enqueue(ctx, mrequest.ActionSocialPost, mrequest.PriorityMedium,
		&mrequest.SocialPayload{Network: "linkedin", Text: "launch"})
	assert.Nil(t, err)

	_, err = service.RunCycle(ctx)
	assert.Nil(t, err)
	assert.Nil(t, store.Transition(ctx, id, mrequest.StagePendingApproval, mrequest.StageRejected, nil))

	stats, err := service.RunCycle(ctx)
	assert.Nil(t, err)
	assert.EqualValues(t, 1, stats.Decided)

	stored, err := store.Load(ctx, id)
	assert.Nil(t, err)
	if assert.NotNil(t, stored.Decision) {
		assert.False(t, stored.Decision.Approved)
	}
}

func TestService_ReconcileToleratesDanglingPlanRef(t *testing.T) {
	store := reqmem.New()
	pol := policy.FromConfig(nil)
	exec := executor.New(store, pol, ratelimit.New(ratelimit.DefaultConfig()), handler.NewRegistry(), nil)
	service := New(store, planmem.New(), pol, exec, nil)

	ctx := context.Background()
	req := &mrequest.Request{
		ID:            "r-1",
		ActionType:    mrequest.ActionEmailSend,
		Stage:         mrequest.StageDone,
		Priority:      mrequest.PriorityMedium,
		CreatedAt:     clock.Now(),
		LinkedPlanRef: "no-such-plan",
		ExecutionResult: &mrequest.ExecutionResult{
			Outcome:    mrequest.OutcomeSimulated,
			ExecutedAt: clock.Now(),
			DryRun:     true,
		},
	}
	assert.Nil(t, store.Save(ctx, req))

	stats, err := service.RunCycle(ctx)
	assert.Nil(t, err)
	assert.EqualValues(t, 0, stats.Reconciled)
}

func TestService_SkipsExhaustedRetries(t *testing.T) {
	store := reqmem.New()
	pol := policy.FromConfig(nil)
	exec := executor.New(store, pol, ratelimit.New(ratelimit.DefaultConfig()), handler.NewRegistry(), nil)
	service := New(store, nil, pol, exec, nil)

	ctx := context.Background()
	req := &mrequest.Request{
		ID:         "r-1",
		ActionType: mrequest.ActionEmailSend,
		Stage:      mrequest.StageApproved,
		Priority:   mrequest.PriorityHigh,
		CreatedAt:  clock.Now(),
		Attempts:   2,
	}
	assert.Nil(t, mrequest.EncodePayload(req, &mrequest.EmailPayload{To: "a@b.c", Subject: "s", Body: "b"}))
	assert.Nil(t, store.Save(ctx, req))

	stats, err := service.RunCycle(ctx)
	assert.Nil(t, err)
	assert.EqualValues(t, 0, stats.Executed)
	assert.EqualValues(t, 0, stats.Failed)
}
