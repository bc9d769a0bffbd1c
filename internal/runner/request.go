package runner

import (
	"time"

	"github.com/torosent/casebench/internal/metrics"
)

// RequestContext is created when a request is admitted and must be handed
// back unchanged when it completes.
type RequestContext struct {
	CaseID   int64
	Seq      uint64 // case generation the request was admitted under
	IssuedAt time.Time
}

// Completer receives exactly one outcome per admitted request. It is safe for
// concurrent use.
type Completer interface {
	Complete(rc RequestContext, outcome metrics.Outcome)
}

// Request is one unit of load handed to an Issuer.
type Request struct {
	Context      RequestContext
	Suite        string
	PayloadBytes int
	Timeout      time.Duration

	done Completer
}

// NewRequest builds a request whose completion is routed to done.
func NewRequest(rc RequestContext, suite string, payloadBytes int, timeout time.Duration, done Completer) Request {
	return Request{
		Context:      rc,
		Suite:        suite,
		PayloadBytes: payloadBytes,
		Timeout:      timeout,
		done:         done,
	}
}

// Complete reports the request's outcome. It must be called exactly once.
func (r Request) Complete(outcome metrics.Outcome) {
	if r.done != nil {
		r.done.Complete(r.Context, outcome)
	}
}

// Issuer starts one request against the target. Issue must not block; the
// outcome is reported later through Request.Complete, possibly from another
// goroutine.
type Issuer interface {
	Issue(req Request)
}

// IssuerFunc adapts a function to the Issuer interface.
type IssuerFunc func(req Request)

func (f IssuerFunc) Issue(req Request) { f(req) }
