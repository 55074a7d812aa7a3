package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextCaptureAndAttach(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tc := CaptureTraceContext(ctx)
	if tc.Traceparent != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("unexpected traceparent %q", tc.Traceparent)
	}

	restored := trace.SpanContextFromContext(tc.Attach(context.Background()))
	if restored.TraceID() != traceID || !restored.IsRemote() {
		t.Fatalf("expected remote span context with same trace id, got %+v", restored)
	}
}

func TestTraceContextZero(t *testing.T) {
	tc := CaptureTraceContext(context.Background())
	if !tc.IsZero() {
		t.Fatalf("expected no trace context without a span, got %+v", tc)
	}
	if tc.Attach(context.Background()) != context.Background() {
		t.Fatalf("expected unchanged context without trace headers")
	}
}
