package runner

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation marks a broken controller or transport contract. The
// run is aborted when one is detected.
var ErrInvariantViolation = errors.New("invariant violation")

// InvariantError describes which invariant broke and on which case.
type InvariantError struct {
	CaseID int64
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation on case %d: %s", e.CaseID, e.Reason)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}

func invariantf(caseID int64, format string, args ...interface{}) error {
	return &InvariantError{CaseID: caseID, Reason: fmt.Sprintf(format, args...)}
}
