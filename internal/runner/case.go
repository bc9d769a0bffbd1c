package runner

import (
	"time"

	"github.com/torosent/casebench/internal/metrics"
)

// Admission modes, selected by a case's concurrency.
const (
	ModeDoubling = "doubling"
	ModeWindow   = "window"
)

// Suite is a named list of cases that share one Issuer.
type Suite struct {
	Name    string
	Section string
	Cases   []*Case
	Issuer  Issuer
}

// Case is one point of the benchmark matrix. Stats and Finalized are written
// once, when the case finalizes.
type Case struct {
	ID           int64
	Suite        string
	Duration     time.Duration
	PayloadBytes int
	Timeout      time.Duration
	Concurrency  int // 0 selects the doubling policy

	Stats     metrics.CaseStats
	Issued    int64
	StartedAt time.Time
	Finalized bool
}

// Mode names the admission policy the case runs under.
func (c *Case) Mode() string {
	if c.Concurrency == 0 {
		return ModeDoubling
	}
	return ModeWindow
}

// Cursor locates the active case. Started counts every case started in the
// run and never decreases.
type Cursor struct {
	Suite   int   `json:"suite" yaml:"suite"`
	Case    int   `json:"case" yaml:"case"`
	Started int64 `json:"started" yaml:"started"`
}

// CountCases returns the number of cases across all suites.
func CountCases(suites []*Suite) int64 {
	var n int64
	for _, s := range suites {
		n += int64(len(s.Cases))
	}
	return n
}
