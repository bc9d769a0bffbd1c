package transport

import (
	"errors"
	"fmt"
)

// HTTPError represents an HTTP request failure with status details.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// SimError is the failure injected by the simulated target.
type SimError struct {
	CaseID int64
}

func (e *SimError) Error() string {
	return fmt.Sprintf("simulated failure in case %d", e.CaseID)
}

// ErrClosed is reported for requests issued after the transport was closed.
var ErrClosed = errors.New("transport closed")
