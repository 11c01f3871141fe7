// Package messaging defines the abstract queue used to fan lifecycle events
// out to external consumers (dashboards, briefing generators) and to spool
// intake across processes. Implementations must deliver each message to a
// single consumer and support explicit acknowledgement.
package messaging

import (
	"context"
)

// Vendor names a queue implementation ("memory", "fs").
type Vendor string

const (
	VendorMemory Vendor = "memory"
	VendorFs     Vendor = "fs"
)

// Queue is an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue; a nil message
	// means the queue is currently empty (fs vendor); blocking vendors
	// wait on ctx instead.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a message retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing of this message.
	Ack() error

	// Nack indicates failure in processing this message; the queue may
	// redeliver it up to its retry limit.
	Nack(err error) error
}
