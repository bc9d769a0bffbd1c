package transport

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
	"github.com/torosent/casebench/internal/tracing"
)

// Transport is a runner.Issuer bound to one target.
type Transport interface {
	runner.Issuer
	// Name is the protocol label used in spans and metrics.
	Name() string
	// Close waits for outstanding requests and releases connections.
	Close() error
}

// CaseContexts supplies the parent context for requests of a case, so that
// request spans nest under the case span.
type CaseContexts interface {
	CaseContext(caseID int64) context.Context
}

// Options carries the run-wide collaborators shared by every transport.
type Options struct {
	Tracer    trace.Tracer
	Spans     CaseContexts
	Propagate bool
	// MaxConcurrency sizes connection reuse to the largest case of the run.
	MaxConcurrency int
	Logger         *zap.Logger
}

// New builds the transport selected by cfg.Type.
func New(cfg config.TransportConfig, opts Options) (Transport, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	switch cfg.Type {
	case "", config.TransportSim:
		return NewSim(cfg, opts), nil
	case config.TransportHTTP:
		return NewHTTP(cfg, opts)
	case config.TransportWebSocket:
		return NewWebSocket(cfg, opts)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Type)
	}
}

// NewLimiter returns the issue-rate cap for rps requests per second, or nil
// when rps is not positive.
func NewLimiter(rps int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), rps)
}

type doFunc func(ctx context.Context, req runner.Request) metrics.Outcome

// executor runs each request in its own goroutine under the case timeout and
// reports the outcome exactly once.
type executor struct {
	protocol string
	do       doFunc
	limiter  *rate.Limiter
	opts     Options

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func newExecutor(protocol string, cfg config.TransportConfig, opts Options, do doFunc) *executor {
	return &executor{
		protocol: protocol,
		do:       do,
		limiter:  NewLimiter(cfg.Rate),
		opts:     opts,
	}
}

func (e *executor) Issue(req runner.Request) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		go req.Complete(metrics.Failure(ErrClosed))
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		req.Complete(e.execute(req))
	}()
}

func (e *executor) execute(req runner.Request) metrics.Outcome {
	parent := context.Background()
	if e.opts.Spans != nil {
		parent = e.opts.Spans.CaseContext(req.Context.CaseID)
	}
	ctx, cancel := parent, context.CancelFunc(func() {})
	if req.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, req.Timeout)
	}
	defer cancel()

	if e.limiter != nil {
		// Wait fails early when the next token lands past the deadline.
		if err := e.limiter.Wait(ctx); err != nil {
			return metrics.Timeout(err)
		}
	}

	if e.opts.Tracer == nil {
		return e.do(ctx, req)
	}
	ctx, span := tracing.StartRequestSpan(ctx, e.opts.Tracer, e.protocol, req)
	outcome := e.do(ctx, req)
	tracing.EndRequestSpan(span, outcome)
	return outcome
}

// wait blocks until every issued request has completed.
func (e *executor) wait() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}
