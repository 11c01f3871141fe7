package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/actiongate/actiongate/internal/clock"
	mrequest "github.com/actiongate/actiongate/model/request"
	"github.com/actiongate/actiongate/service/audit"
	auditmem "github.com/actiongate/actiongate/service/audit/memory"
	reqmem "github.com/actiongate/actiongate/service/dao/request/memory"
	"github.com/actiongate/actiongate/service/event"
	msgmem "github.com/actiongate/actiongate/service/messaging/memory"
)

func TestService_Enqueue(t *testing.T) {
	frozen := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return frozen }
	defer func() { clock.NowFunc = time.Now }()

	store := reqmem.New()
	auditor := auditmem.New()
	queue := msgmem.NewQueue[event.Event](msgmem.DefaultConfig())
	service := New(store, auditor, event.New(queue))
	ctx := context.Background()

	id, err := service.Enqueue(ctx, mrequest.ActionEmailSend, mrequest.PriorityHigh,
		&mrequest.EmailPayload{To: "ops@example.com", Subject: "digest", Body: "ready"},
		WithSourceRef("inbox/digest.md"))
	assert.Nil(t, err)
	assert.NotEqual(t, "", id)

	stored, err := store.Load(ctx, id)
	assert.Nil(t, err)
	assert.EqualValues(t, mrequest.StageIntake, stored.Stage)
	assert.EqualValues(t, mrequest.PriorityHigh, stored.Priority)
	assert.EqualValues(t, frozen, stored.CreatedAt)
	assert.EqualValues(t, "inbox/digest.md", stored.SourceRef)

	payload, err := mrequest.DecodePayload(stored)
	assert.Nil(t, err)
	email, ok := payload.(*mrequest.EmailPayload)
	if assert.True(t, ok) {
		assert.EqualValues(t, "ops@example.com", email.To)
	}

	entries := auditor.All()
	if assert.EqualValues(t, 1, len(entries)) {
		assert.EqualValues(t, audit.ActorIntake, entries[0].Actor)
		assert.EqualValues(t, audit.ResultIntake, entries[0].Result)
		assert.EqualValues(t, id, entries[0].Target)
	}

	msg, err := queue.Consume(ctx)
	assert.Nil(t, err)
	assert.EqualValues(t, event.TopicRequestCreated, msg.T().Topic)
	assert.Nil(t, msg.Ack())
}

func TestService_EnqueueDefaultsPriority(t *testing.T) {
	store := reqmem.New()
	service := New(store, nil, nil)
	id, err := service.Enqueue(context.Background(), mrequest.ActionFileDelete, "",
		&mrequest.FileDeletePayload{Path: "archive/old.md"})
	assert.Nil(t, err)
	stored, err := store.Load(context.Background(), id)
	assert.Nil(t, err)
	assert.EqualValues(t, mrequest.PriorityMedium, stored.Priority)
}

func TestService_EnqueueInvalidPayload(t *testing.T) {
	service := New(reqmem.New(), nil, nil)
	_, err := service.Enqueue(context.Background(), mrequest.ActionPayment, mrequest.PriorityHigh,
		&mrequest.PaymentPayload{Amount: -5, Currency: "USD", Recipient: "acme"})
	assert.NotNil(t, err)
}
