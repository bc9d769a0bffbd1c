package metrics

import (
	"context"
	"errors"
	"net"
)

// OutcomeKind is the terminal result class of one request.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimeout
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is what a transport reports when a request completes. Status is an
// optional protocol code ("500", "close 1006") kept for the failure breakdown.
type Outcome struct {
	Kind   OutcomeKind
	Err    error
	Status string
}

func Success() Outcome { return Outcome{Kind: OutcomeSuccess} }

func Timeout(err error) Outcome {
	if err == nil {
		err = context.DeadlineExceeded
	}
	return Outcome{Kind: OutcomeTimeout, Err: err}
}

func Failure(err error) Outcome {
	if err == nil {
		err = errors.New("request failed")
	}
	return Outcome{Kind: OutcomeError, Err: err}
}

// WithStatus returns a copy of o carrying the given status code.
func (o Outcome) WithStatus(status string) Outcome {
	o.Status = status
	return o
}

// Classify maps a transport error to an outcome. Deadline and network
// timeouts are timeouts, any other error is a failure.
func Classify(err error) Outcome {
	if err == nil {
		return Success()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(err)
	}
	return Failure(err)
}
