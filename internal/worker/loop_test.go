package worker

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/solmave/phonatia/internal/broker"
	"github.com/solmave/phonatia/internal/broker/mock"
	"github.com/solmave/phonatia/internal/observe"
	"github.com/solmave/phonatia/internal/store/memstore"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("creating metrics: %v", err)
	}
	return m
}

func testTuning() Tuning {
	return Tuning{
		BatchSize:      5,
		FetchWait:      time.Millisecond,
		IdleSleep:      time.Millisecond,
		ProcessTimeout: 10 * time.Second,
	}
}

// runLoop starts the loop, waits for cond, then shuts it down.
func runLoop(t *testing.T, l *Loop, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			cancel()
			t.Fatal("condition not reached before deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestLoop_CompletesProcessedMessage(t *testing.T) {
	t.Parallel()
	ms := memstore.New()
	p := newTestPipeline(t, ms, wavFixture(t))

	msg := &mock.Message{
		Payload: []byte(`{"submissionId":"sub-1","childId":"child-1","blobUrl":"https://blobs/a.wav"}`),
	}
	rcv := &mock.Receiver{Batches: [][]broker.Message{{msg}}}
	l := NewLoop(rcv, p, testMetrics(t), 2, testTuning())

	runLoop(t, l, func() bool { return msg.Completed() == 1 })

	if msg.Abandoned() != 0 {
		t.Errorf("Abandoned = %d, want 0", msg.Abandoned())
	}
	if len(ms.Reports()) != 1 {
		t.Errorf("saved %d reports, want 1", len(ms.Reports()))
	}
}

func TestLoop_AbandonsInvalidPayload(t *testing.T) {
	t.Parallel()
	ms := memstore.New()
	p := newTestPipeline(t, ms, wavFixture(t))

	msg := &mock.Message{Payload: []byte(`{"childId":"child-1"}`)}
	rcv := &mock.Receiver{Batches: [][]broker.Message{{msg}}}
	l := NewLoop(rcv, p, testMetrics(t), 2, testTuning())

	runLoop(t, l, func() bool { return msg.Abandoned() == 1 })

	if msg.Completed() != 0 {
		t.Errorf("Completed = %d, want 0", msg.Completed())
	}
	if len(ms.Reports()) != 0 {
		t.Error("report saved for invalid payload")
	}
}

func TestLoop_AbandonsOnPipelineFailure(t *testing.T) {
	t.Parallel()
	ms := memstore.New()
	p := newTestPipeline(t, ms, []byte("not audio"))

	msg := &mock.Message{
		Payload: []byte(`{"submissionId":"sub-1","childId":"child-1","blobUrl":"https://blobs/a.wav"}`),
	}
	rcv := &mock.Receiver{Batches: [][]broker.Message{{msg}}}
	l := NewLoop(rcv, p, testMetrics(t), 2, testTuning())

	runLoop(t, l, func() bool { return msg.Abandoned() == 1 })
}

func TestLoop_ProcessesWholeBatch(t *testing.T) {
	t.Parallel()
	ms := memstore.New()
	p := newTestPipeline(t, ms, wavFixture(t))

	payload := []byte(`{"submissionId":"sub-1","childId":"child-1","blobUrl":"https://blobs/a.wav"}`)
	msgs := []*mock.Message{{Payload: payload}, {Payload: payload}, {Payload: payload}}
	batch := make([]broker.Message, len(msgs))
	for i, m := range msgs {
		batch[i] = m
	}
	rcv := &mock.Receiver{Batches: [][]broker.Message{batch}}
	l := NewLoop(rcv, p, testMetrics(t), 2, testTuning())

	runLoop(t, l, func() bool {
		for _, m := range msgs {
			if m.Completed() != 1 {
				return false
			}
		}
		return true
	})

	if len(ms.Reports()) != len(msgs) {
		t.Errorf("saved %d reports, want %d", len(ms.Reports()), len(msgs))
	}
}

func TestLoop_SetTuning(t *testing.T) {
	t.Parallel()
	l := NewLoop(&mock.Receiver{}, nil, testMetrics(t), 1, testTuning())

	next := Tuning{BatchSize: 9, FetchWait: time.Second, IdleSleep: time.Second, ProcessTimeout: time.Minute}
	l.SetTuning(next)
	if got := l.currentTuning(); got != next {
		t.Errorf("currentTuning = %+v, want %+v", got, next)
	}
}
