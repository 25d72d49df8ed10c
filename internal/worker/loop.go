package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/solmave/phonatia/internal/broker"
	"github.com/solmave/phonatia/internal/observe"
)

// settleTimeout bounds the Complete/Abandon round trip after processing, so
// shutdown is not held hostage by a slow broker.
const settleTimeout = 10 * time.Second

// Tuning holds the loop parameters that may be adjusted at runtime.
type Tuning struct {
	// BatchSize is the maximum messages fetched per poll.
	BatchSize int

	// FetchWait is how long a poll waits for the first message.
	FetchWait time.Duration

	// IdleSleep is the pause after an empty poll.
	IdleSleep time.Duration

	// ProcessTimeout bounds one submission end to end. Zero disables the
	// watchdog.
	ProcessTimeout time.Duration
}

// Loop pulls submission batches from the queue and dispatches them to the
// pipeline, with a semaphore bounding concurrent work.
type Loop struct {
	receiver broker.Receiver
	pipeline *Pipeline
	metrics  *observe.Metrics
	sem      *semaphore.Weighted

	mu     sync.Mutex
	tuning Tuning
}

// NewLoop builds a message loop. maxInFlight bounds concurrently processed
// submissions and must be at least 1.
func NewLoop(receiver broker.Receiver, pipeline *Pipeline, metrics *observe.Metrics, maxInFlight int, tuning Tuning) *Loop {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Loop{
		receiver: receiver,
		pipeline: pipeline,
		metrics:  metrics,
		sem:      semaphore.NewWeighted(int64(maxInFlight)),
		tuning:   tuning,
	}
}

// SetTuning replaces the loop parameters. Safe to call while Run is active;
// the next poll uses the new values.
func (l *Loop) SetTuning(t Tuning) {
	l.mu.Lock()
	l.tuning = t
	l.mu.Unlock()
}

func (l *Loop) currentTuning() Tuning {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tuning
}

// Run polls the queue until ctx is cancelled, then waits for in-flight
// submissions to settle. The returned error is nil on clean shutdown.
func (l *Loop) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		t := l.currentTuning()

		msgs, err := l.receiver.Receive(ctx, t.BatchSize, t.FetchWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("queue receive failed", "err", err)
			sleep(ctx, t.IdleSleep)
			continue
		}
		if len(msgs) == 0 {
			sleep(ctx, t.IdleSleep)
			continue
		}

		for _, msg := range msgs {
			// Back-pressure: block dispatch until a slot frees up.
			if err := l.sem.Acquire(ctx, 1); err != nil {
				abandonRemaining(msg)
				continue
			}
			wg.Add(1)
			go func(m broker.Message) {
				defer wg.Done()
				defer l.sem.Release(1)
				l.handle(ctx, m, t.ProcessTimeout)
			}(msg)
		}
	}
}

// handle processes one message and settles it. A failed submission is
// abandoned for redelivery; validation failures are settled the same way and
// left to the broker's delivery limit.
func (l *Loop) handle(ctx context.Context, msg broker.Message, timeout time.Duration) {
	start := time.Now()
	l.metrics.Requests.Add(ctx, 1)

	ctx, span := observe.StartSpan(ctx, "process submission")
	defer span.End()

	err := l.process(ctx, msg.Data(), timeout)

	l.metrics.ProcessingDuration.Record(ctx, time.Since(start).Seconds())

	// Settle on a background context: the loop context may already be
	// cancelled during shutdown, but the broker still needs the verdict.
	settleCtx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err != nil {
		l.metrics.Errors.Add(ctx, 1)
		if errors.Is(err, ErrValidation) {
			observe.Logger(ctx).Warn("submission rejected", "err", err)
		} else {
			observe.Logger(ctx).Error("submission failed", "err", err)
		}
		if aerr := msg.Abandon(settleCtx); aerr != nil {
			slog.Warn("abandon failed", "err", aerr)
		}
		return
	}
	if cerr := msg.Complete(settleCtx); cerr != nil {
		slog.Warn("complete failed", "err", cerr)
	}
}

func (l *Loop) process(ctx context.Context, data []byte, timeout time.Duration) error {
	sub, err := ParseSubmission(data)
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return l.pipeline.Process(ctx, sub)
}

// abandonRemaining returns an undispatched message to the queue during
// shutdown.
func abandonRemaining(msg broker.Message) {
	settleCtx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	if err := msg.Abandon(settleCtx); err != nil {
		slog.Warn("abandon failed", "err", err)
	}
}

// sleep pauses for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
