package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testPayload struct {
	RequestID string
	Topic     string
}

func TestPublishConsumeAck(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testPayload](config)

	ctx := context.Background()
	payload := testPayload{RequestID: "r1", Topic: "request.created"}

	assert.NoError(t, queue.Publish(ctx, &payload))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())
	assert.EqualValues(t, payload, *message.T())

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack(), "double ack must fail")
}

func TestNackRedeliversThenParks(t *testing.T) {
	config := Config{MaxRetries: 1, RetryDelay: 5 * time.Millisecond, QueueBuffer: 10}
	queue := NewQueue[testPayload](config)

	ctx := context.Background()
	assert.NoError(t, queue.Publish(ctx, &testPayload{RequestID: "r2"}))

	first, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NoError(t, first.Nack(errors.New("boom")))

	// message is redelivered once
	redeliverCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	second, err := queue.Consume(redeliverCtx)
	assert.NoError(t, err)
	assert.EqualValues(t, "r2", second.T().RequestID)

	// second failure exceeds the retry limit
	assert.NoError(t, second.Nack(errors.New("boom again")))
	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestConsumeHonoursContext(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
