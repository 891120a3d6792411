// Package telemetry wraps OpenTelemetry tracing and metrics behind the
// small surface the executor and planner actually need: a span per run, a
// span per step, and a handful of counters.
package telemetry

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/arclabs/pilot"

var (
	tracer  trace.Tracer = otel.Tracer(instrumentationName)
	meter   metric.Meter = otel.Meter(instrumentationName)
	enabled atomic.Bool
)

// Enable installs a stdout span exporter as the global tracer provider.
// Enable replaces any previously installed global provider, so deployments
// that want a real collector install their own provider via
// otel.SetTracerProvider and skip Enable; exporter selection is a
// deployment concern, the core only emits spans.
func Enable() error {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer(instrumentationName)
	meter = otel.Meter(instrumentationName)
	enabled.Store(true)
	return nil
}

// StartRun opens a span covering one run's entire execution.
func StartRun(ctx context.Context, runID, goal string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "run.execute",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("goal", goal),
		),
	)
}

// StartStep opens a span covering one step attempt.
func StartStep(ctx context.Context, runID, stepID, tool string, attempt int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "run.step",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("step_id", stepID),
			attribute.String("tool", tool),
			attribute.Int("attempt", attempt),
		),
	)
}

// AddEvent records a named event on the span in ctx, if any.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records err on the span in ctx, if any.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	trace.SpanFromContext(ctx).RecordError(err)
}

// Counter increments a named counter metric by one, with string label
// pairs attached as attributes. Swallows instrument-creation errors: a
// telemetry failure must never affect control flow.
func Counter(name string, labels ...string) {
	c, err := meter.Int64Counter(name)
	if err != nil {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(labelAttrs(labels)...))
}

func labelAttrs(labels []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}
