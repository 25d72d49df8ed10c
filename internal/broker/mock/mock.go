// Package mock provides queue test doubles.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/solmave/phonatia/internal/broker"
)

// Message is a scripted queue message that records its settlement.
type Message struct {
	// Payload is returned by Data.
	Payload []byte

	// CompleteErr and AbandonErr allow error injection.
	CompleteErr error
	AbandonErr  error

	mu        sync.Mutex
	completed int
	abandoned int
}

var _ broker.Message = (*Message)(nil)

func (m *Message) Data() []byte { return m.Payload }

func (m *Message) Complete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
	return m.CompleteErr
}

func (m *Message) Abandon(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned++
	return m.AbandonErr
}

// Completed reports how many times Complete was called.
func (m *Message) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// Abandoned reports how many times Abandon was called.
func (m *Message) Abandoned() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abandoned
}

// Receiver serves pre-loaded batches in order, then empty batches.
type Receiver struct {
	// Batches are returned one per Receive call.
	Batches [][]broker.Message

	// Err is returned by every Receive call when non-nil.
	Err error

	mu     sync.Mutex
	next   int
	closed bool
}

var _ broker.Receiver = (*Receiver)(nil)

// Receive implements [broker.Receiver].
func (r *Receiver) Receive(ctx context.Context, _ int, _ time.Duration) ([]broker.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.Batches) {
		return nil, nil
	}
	batch := r.Batches[r.next]
	r.next++
	return batch, nil
}

// Close implements [broker.Receiver].
func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Receiver) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
