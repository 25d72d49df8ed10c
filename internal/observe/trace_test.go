package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })
	return exp
}

func TestCorrelationID_NoSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}
}

func TestStartSpan(t *testing.T) {
	exp := withTestTracer(t)

	ctx, span := StartSpan(context.Background(), "process submission")
	if CorrelationID(ctx) == "" {
		t.Error("no correlation ID inside active span")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "process submission" {
		t.Errorf("spans = %+v, want one named span", spans)
	}
}

func TestLogger(t *testing.T) {
	withTestTracer(t)

	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil without a span")
	}
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	if Logger(ctx) == nil {
		t.Fatal("Logger returned nil inside a span")
	}
}
