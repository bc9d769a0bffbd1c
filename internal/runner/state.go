package runner

import (
	"time"

	"github.com/torosent/casebench/internal/metrics"
)

// State is the lifecycle state of the controller.
type State int

const (
	StateIdle State = iota
	StateWarmup
	StateRunning
	StateQuiescing
	StateFinalized
	StateAllDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarmup:
		return "warmup"
	case StateRunning:
		return "running"
	case StateQuiescing:
		return "quiescing"
	case StateFinalized:
		return "finalized"
	case StateAllDone:
		return "all-done"
	default:
		return "unknown"
	}
}

// Progress is a point-in-time view of the controller.
type Progress struct {
	State      State
	Cursor     Cursor
	TotalCases int64
	Case       CaseInfo
	InFlight   int
	Issued     int64
	Counts     metrics.Counts
	Elapsed    time.Duration // since the active case started
}
