package runner

import (
	"github.com/torosent/casebench/internal/metrics"
)

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(req Request, outcome metrics.Outcome)
}

// loggingIssuer wraps an Issuer with failure logging.
type loggingIssuer struct {
	inner  Issuer
	logger FailureLogger
}

// WithLogging wraps an Issuer so that timeouts and errors are logged before
// they reach the controller.
func WithLogging(iss Issuer, logger FailureLogger) Issuer {
	if logger == nil {
		return iss
	}
	return &loggingIssuer{
		inner:  iss,
		logger: logger,
	}
}

func (l *loggingIssuer) Issue(req Request) {
	req.done = &loggingCompleter{inner: req.done, req: req, logger: l.logger}
	l.inner.Issue(req)
}

type loggingCompleter struct {
	inner  Completer
	req    Request
	logger FailureLogger
}

func (l *loggingCompleter) Complete(rc RequestContext, outcome metrics.Outcome) {
	if outcome.Kind != metrics.OutcomeSuccess {
		l.logger.LogFailure(l.req, outcome)
	}
	if l.inner != nil {
		l.inner.Complete(rc, outcome)
	}
}
