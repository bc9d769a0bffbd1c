package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

// Attribute keys shared by case and request spans.
const (
	AttrSuite        = attribute.Key("casebench.suite")
	AttrCaseID       = attribute.Key("casebench.case_id")
	AttrConcurrency  = attribute.Key("casebench.concurrency")
	AttrTimeoutMs    = attribute.Key("casebench.timeout_ms")
	AttrPayloadBytes = attribute.Key("casebench.payload_bytes")
	AttrOutcome      = attribute.Key("casebench.outcome")
	AttrStatus       = attribute.Key("casebench.status")
)

// StartRequestSpan starts a client span for one request of a case.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, protocol string, req runner.Request) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, protocol+" request",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("rpc.system", protocol),
		AttrSuite.String(req.Suite),
		AttrCaseID.Int64(req.Context.CaseID),
		AttrPayloadBytes.Int(req.PayloadBytes),
		AttrTimeoutMs.Int64(req.Timeout.Milliseconds()),
	)
	return ctx, span
}

// EndRequestSpan finishes a request span with the request's outcome.
func EndRequestSpan(span trace.Span, outcome metrics.Outcome) {
	attrs := []attribute.KeyValue{AttrOutcome.String(outcome.Kind.String())}
	if outcome.Status != "" {
		attrs = append(attrs, AttrStatus.String(outcome.Status))
	}
	EndSpan(span, outcome.Err, attrs...)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
