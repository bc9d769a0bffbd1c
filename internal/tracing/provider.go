// Package tracing exports a run as one trace: a root span for the run, a span
// per case beneath it, and a client span per request beneath its case. W3C
// trace context is propagated to the target when enabled.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/runner"
)

const (
	tracerName         = "github.com/torosent/casebench"
	defaultServiceName = "casebench"
	runSpanName        = "casebench run"
)

// Run attribute keys, set on the resource and on the run span.
const (
	AttrRunName   = attribute.Key("casebench.run.name")
	AttrRunID     = attribute.Key("casebench.run.id")
	AttrTransport = attribute.Key("casebench.transport")
)

// Run identifies the run whose spans a Provider exports.
type Run struct {
	Name      string
	ID        string
	Transport string
}

func (r Run) attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if r.Name != "" {
		attrs = append(attrs, AttrRunName.String(r.Name))
	}
	if r.ID != "" {
		attrs = append(attrs, AttrRunID.String(r.ID))
	}
	if r.Transport != "" {
		attrs = append(attrs, AttrTransport.String(r.Transport))
	}
	return attrs
}

// Options configure Init.
type Options struct {
	Config config.TracingConfig
	Run    Run
	// Exporter, when set, replaces the OTLP exporter built from Config and is
	// flushed synchronously.
	Exporter sdktrace.SpanExporter
}

// Provider owns the run's tracer provider.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
	run       Run
}

// Init builds the provider for one run. Without an exporter or an OTLP
// endpoint it returns a provider whose tracer records nothing.
func Init(ctx context.Context, opts Options) (*Provider, error) {
	cfg := opts.Config
	p := &Provider{propagate: cfg.ShouldPropagate(), run: opts.Run}

	exp := opts.Exporter
	batched := exp == nil
	if exp == nil {
		endpoint := otlpEndpoint(cfg)
		if endpoint == "" {
			return p, nil
		}
		var err error
		if exp, err = newExporter(ctx, cfg.Protocol, endpoint, cfg.Insecure); err != nil {
			return nil, fmt.Errorf("tracing exporter: %w", err)
		}
	}

	sampler, err := newRequestSampler(cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	attrs := append([]attribute.KeyValue{semconv.ServiceName(serviceName(cfg))}, opts.Run.attributes()...)
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
		sdktrace.WithSampler(sampler),
	}
	if batched {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	} else {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exp))
	}
	p.tp = sdktrace.NewTracerProvider(tpOpts...)
	p.tracer = p.tp.Tracer(tracerName)

	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

// Tracer returns the run's tracer, or a no-op tracer when nothing is exported.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(tracerName)
	}
	return p.tracer
}

// ShouldPropagate reports whether request transports inject traceparent.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// StartRun opens the root span of the run.
func (p *Provider) StartRun(ctx context.Context) (context.Context, trace.Span) {
	var run Run
	if p != nil {
		run = p.run
	}
	return p.Tracer().Start(ctx, runSpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(run.attributes()...),
	)
}

// CaseSpans returns the observer that parents case spans on the run span in
// runCtx.
func (p *Provider) CaseSpans(runCtx context.Context) *CaseSpans {
	return NewCaseSpans(runCtx, p.Tracer())
}

// EndRun closes the run span with the run's totals.
func EndRun(span trace.Span, report runner.RunReport, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int64("casebench.total_cases", report.TotalCases),
		attribute.Int64("casebench.started_cases", report.Cursor.Started),
		attribute.Int("casebench.finalized_cases", len(report.Cases)),
		attribute.Bool("casebench.interrupted", report.Interrupted),
	}
	if report.ID != "" {
		attrs = append(attrs, AttrRunID.String(report.ID))
	}
	EndSpan(span, err, attrs...)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func serviceName(cfg config.TracingConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return defaultServiceName
}

func otlpEndpoint(cfg config.TracingConfig) string {
	if cfg.Endpoint != "" {
		return cfg.Endpoint
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

func newExporter(ctx context.Context, protocol, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(protocol) {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", protocol)
	}
}

// requestSampler records every run and case span and keeps rate of the
// client request spans. All spans of a run share one trace ID, so a ratio
// sampler keyed on the trace ID would keep or drop the whole run; the
// fraction is applied by count instead.
type requestSampler struct {
	rate float64
	seen atomic.Uint64
}

func newRequestSampler(rate float64) (*requestSampler, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	}
	return &requestSampler{rate: rate}, nil
}

func (s *requestSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	state := trace.SpanContextFromContext(params.ParentContext).TraceState()
	if params.Kind != trace.SpanKindClient {
		return sdktrace.SamplingResult{Decision: sdktrace.RecordAndSample, Tracestate: state}
	}
	n := s.seen.Add(1)
	if uint64(float64(n)*s.rate) > uint64(float64(n-1)*s.rate) {
		return sdktrace.SamplingResult{Decision: sdktrace.RecordAndSample, Tracestate: state}
	}
	return sdktrace.SamplingResult{Decision: sdktrace.Drop, Tracestate: state}
}

func (s *requestSampler) Description() string {
	return fmt.Sprintf("RequestSampler{%g}", s.rate)
}
