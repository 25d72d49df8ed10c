package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// durableName identifies the worker's shared pull consumer. All worker
// replicas attach to the same durable, so the stream load-balances across
// them.
const durableName = "phonatia-worker"

// NATSReceiver implements [Receiver] on a JetStream pull subscription.
type NATSReceiver struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

var _ Receiver = (*NATSReceiver)(nil)

// NewNATS connects to the server and opens a durable pull subscription on
// the submission subject.
func NewNATS(url, subject string) (*NATSReceiver, error) {
	conn, err := nats.Connect(url, nats.Name("phonatia"))
	if err != nil {
		return nil, fmt.Errorf("broker: connect %s: %w", url, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: jetstream: %w", err)
	}
	sub, err := js.PullSubscribe(subject, durableName)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: subscribe %s: %w", subject, err)
	}
	return &NATSReceiver{conn: conn, sub: sub}, nil
}

// Receive implements [Receiver]. A fetch timeout is an idle queue, not an
// error.
func (r *NATSReceiver) Receive(ctx context.Context, max int, maxWait time.Duration) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := r.sub.Fetch(max, nats.MaxWait(maxWait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}
		return nil, fmt.Errorf("broker: fetch: %w", err)
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = natsMessage{m}
	}
	return out, nil
}

// Close drains the subscription and closes the connection.
func (r *NATSReceiver) Close() error {
	err := r.sub.Drain()
	r.conn.Close()
	if err != nil {
		return fmt.Errorf("broker: drain: %w", err)
	}
	return nil
}

type natsMessage struct {
	msg *nats.Msg
}

var _ Message = natsMessage{}

func (m natsMessage) Data() []byte { return m.msg.Data }

func (m natsMessage) Complete(ctx context.Context) error {
	return m.msg.Ack(nats.Context(ctx))
}

func (m natsMessage) Abandon(ctx context.Context) error {
	return m.msg.Nak(nats.Context(ctx))
}
