// Package broker abstracts the submission queue. Messages are delivered
// at-least-once: a message stays on the queue until Complete acknowledges it,
// and Abandon returns it for redelivery.
package broker

import (
	"context"
	"time"
)

// Message is one queued submission.
type Message interface {
	// Data returns the raw message payload.
	Data() []byte

	// Complete removes the message from the queue.
	Complete(ctx context.Context) error

	// Abandon returns the message to the queue for redelivery.
	Abandon(ctx context.Context) error
}

// Receiver pulls batches of messages from the queue.
type Receiver interface {
	// Receive returns up to max messages, waiting at most maxWait for the
	// first one. An empty batch with a nil error means the queue was idle.
	Receive(ctx context.Context, max int, maxWait time.Duration) ([]Message, error)

	// Close drains the subscription and releases the connection.
	Close() error
}
