package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/actiongate/actiongate/service/messaging"
)

// Config for the memory queue implementation.
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	QueueBuffer int
}

// DefaultConfig returns a standard configuration for the memory queue.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		QueueBuffer: 100,
	}
}

// Message implements messaging.Message for the in-memory queue.
type Message[T any] struct {
	payload    T
	queue      *Queue[T]
	retryCount int

	mu        sync.Mutex
	processed bool
}

// T returns the message payload.
func (m *Message[T]) T() *T { return &m.payload }

// Ack acknowledges the message as processed successfully.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return nil
}

// Nack reports a processing failure; the message is redelivered after the
// retry delay until the retry limit is reached, then parked on the dead
// letter queue.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.retryCount++

	if m.retryCount <= m.queue.config.MaxRetries {
		retry := &Message[T]{payload: m.payload, queue: m.queue, retryCount: m.retryCount}
		go func() {
			time.Sleep(m.queue.config.RetryDelay)
			m.queue.messages <- retry
		}()
		return nil
	}

	m.queue.dlqMu.Lock()
	m.queue.dlq = append(m.queue.dlq, m)
	m.queue.dlqMu.Unlock()
	return nil
}

// Queue implements an in-memory messaging.Queue.
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config

	dlqMu sync.Mutex
	dlq   []*Message[T]
}

// NewQueue creates a new in-memory queue.
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
	}
}

// Publish adds a new item to the queue.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	msg := &Message[T]{payload: *t, queue: q}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume blocks until an item is available or ctx is cancelled.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the current number of queued messages.
func (q *Queue[T]) Size() int { return len(q.messages) }

// DLQSize returns the number of messages parked on the dead letter queue.
func (q *Queue[T]) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
