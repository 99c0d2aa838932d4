package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/beacon"

// Tracer provides OpenTelemetry spans for delivery attempts and workflow steps.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a span for one delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, deliveryID, eventID, endpointID string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "beacon.delivery",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("beacon.delivery_id", deliveryID),
			attribute.String("beacon.event_id", eventID),
			attribute.String("beacon.endpoint_id", endpointID),
			attribute.Int("beacon.attempt", attempt),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode int, latencyMs int64, errMsg string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int64("beacon.latency_ms", latencyMs),
	)
	if errMsg != "" {
		span.SetAttributes(attribute.String("beacon.error", errMsg))
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}

// StartStepSpan starts a span for one workflow step execution.
func (t *Tracer) StartStepSpan(ctx context.Context, runID, kind string, index int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "beacon.step",
		trace.WithAttributes(
			attribute.String("beacon.run_id", runID),
			attribute.String("beacon.step_kind", kind),
			attribute.Int("beacon.step_index", index),
		),
	)
}

// EndStepSpan ends a step span with its outcome.
func (t *Tracer) EndStepSpan(span trace.Span, outcome, errMsg string) {
	span.SetAttributes(attribute.String("beacon.step_outcome", outcome))
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}
