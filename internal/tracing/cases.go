package tracing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

// CaseSpans is a runner.Observer that opens one span per case. Request spans
// started by transports are parented on the active case span through
// CaseContext.
type CaseSpans struct {
	runner.NopObserver

	tracer trace.Tracer
	parent context.Context

	mu    sync.Mutex
	spans map[int64]caseSpan
}

type caseSpan struct {
	ctx  context.Context
	span trace.Span
}

// NewCaseSpans returns an observer whose case spans are children of the span
// in parent, if any.
func NewCaseSpans(parent context.Context, tracer trace.Tracer) *CaseSpans {
	if parent == nil {
		parent = context.Background()
	}
	return &CaseSpans{
		tracer: tracer,
		parent: parent,
		spans:  make(map[int64]caseSpan),
	}
}

func (c *CaseSpans) CaseStarted(info runner.CaseInfo) {
	ctx, span := c.tracer.Start(c.parent, fmt.Sprintf("case %s#%d", info.Suite, info.ID),
		trace.WithTimestamp(startTime(info.StartedAt)),
		trace.WithAttributes(
			AttrSuite.String(info.Suite),
			AttrCaseID.Int64(info.ID),
			AttrConcurrency.Int(info.Concurrency),
			AttrTimeoutMs.Int64(info.TimeoutMs),
			AttrPayloadBytes.Int(info.PayloadBytes),
			attribute.String("casebench.mode", info.Mode),
		),
	)
	c.mu.Lock()
	c.spans[info.ID] = caseSpan{ctx: ctx, span: span}
	c.mu.Unlock()
}

func (c *CaseSpans) CaseFinalized(report runner.CaseReport) {
	c.mu.Lock()
	cs, ok := c.spans[report.ID]
	delete(c.spans, report.ID)
	c.mu.Unlock()
	if !ok {
		return
	}

	stats := report.Stats
	attrs := []attribute.KeyValue{
		attribute.Int64("casebench.issued", report.Issued),
		attribute.Int64("casebench.successes", stats.Successes),
		attribute.Int64("casebench.timeouts", stats.Timeouts),
		attribute.Int64("casebench.errors", stats.Errors),
		attribute.Float64("casebench.qps", stats.QPS),
		attribute.Float64("casebench.throughput_mib_per_sec", stats.ThroughputMiBps),
		attribute.Bool("casebench.interrupted", report.Interrupted),
	}
	if stats.HasLatency {
		attrs = append(attrs,
			attribute.Float64("casebench.latency_avg_ms", stats.AvgLatencyMs),
			attribute.Float64("casebench.latency_p99_ms", stats.P99LatencyMs),
		)
	}
	var err error
	if stats.Successes == 0 && stats.Total > 0 {
		err = fmt.Errorf("case %d had no successful requests", report.ID)
	}
	EndSpan(cs.span, err, attrs...)
}

// CaseContext returns the context carrying the span of an active case, or
// the parent context when the case has no span.
func (c *CaseSpans) CaseContext(caseID int64) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cs, ok := c.spans[caseID]; ok {
		return cs.ctx
	}
	return c.parent
}

// RequestCompleted adds failed requests as events on the case span.
func (c *CaseSpans) RequestCompleted(info runner.CaseInfo, latency time.Duration, outcome metrics.Outcome) {
	if outcome.Kind == metrics.OutcomeSuccess {
		return
	}
	c.mu.Lock()
	cs, ok := c.spans[info.ID]
	c.mu.Unlock()
	if !ok {
		return
	}
	attrs := []attribute.KeyValue{attribute.Int64("casebench.latency_us", latency.Microseconds())}
	if outcome.Status != "" {
		attrs = append(attrs, AttrStatus.String(outcome.Status))
	}
	cs.span.AddEvent("request "+outcome.Kind.String(), trace.WithAttributes(attrs...))
}

func startTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
