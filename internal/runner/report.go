package runner

import (
	"time"

	"github.com/torosent/casebench/internal/metrics"
)

// CaseInfo identifies a case and its configuration.
type CaseInfo struct {
	Suite        string        `json:"suite" yaml:"suite"`
	ID           int64         `json:"id" yaml:"id"`
	TotalCases   int64         `json:"total_cases" yaml:"total_cases"`
	Concurrency  int           `json:"concurrency" yaml:"concurrency"`
	Mode         string        `json:"mode" yaml:"mode"`
	Timeout      time.Duration `json:"-" yaml:"-"`
	TimeoutMs    int64         `json:"timeout_ms" yaml:"timeout_ms"`
	PayloadBytes int           `json:"payload_bytes" yaml:"payload_bytes"`
	Duration     time.Duration `json:"-" yaml:"-"`
	DurationMs   int64         `json:"duration_ms" yaml:"duration_ms"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
}

// CaseReport is the frozen summary of a finalized case.
type CaseReport struct {
	CaseInfo `yaml:",inline"`

	Issued      int64             `json:"issued" yaml:"issued"`
	Interrupted bool              `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Stats       metrics.CaseStats `json:"stats" yaml:"stats"`
}

// RunReport summarizes every case of a run in execution order.
type RunReport struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time     `json:"finished_at" yaml:"finished_at"`
	Duration    time.Duration `json:"-" yaml:"-"`
	DurationMs  float64       `json:"duration_ms" yaml:"duration_ms"`
	TotalCases  int64         `json:"total_cases" yaml:"total_cases"`
	Cursor      Cursor        `json:"cursor" yaml:"cursor"`
	Interrupted bool          `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Cases       []CaseReport  `json:"cases" yaml:"cases"`
}

// Reporter receives each finalized case and, once the run ends, the run
// summary. Calls come from the controller's driver goroutine.
type Reporter interface {
	ReportCase(c CaseReport)
	ReportRun(r RunReport)
}

// Observer is notified of controller activity. RequestsIssued and
// RequestCompleted may be called concurrently.
type Observer interface {
	CaseStarted(info CaseInfo)
	RequestsIssued(info CaseInfo, n int)
	RequestCompleted(info CaseInfo, latency time.Duration, outcome metrics.Outcome)
	CaseFinalized(report CaseReport)
}

// NopObserver implements Observer with no-ops. Embed it to observe a subset
// of events.
type NopObserver struct{}

func (NopObserver) CaseStarted(CaseInfo) {}
func (NopObserver) RequestsIssued(CaseInfo, int) {}
func (NopObserver) RequestCompleted(CaseInfo, time.Duration, metrics.Outcome) {}
func (NopObserver) CaseFinalized(CaseReport) {}

type nopReporter struct{}

func (nopReporter) ReportCase(CaseReport) {}
func (nopReporter) ReportRun(RunReport) {}

type multiObserver []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) CaseStarted(info CaseInfo) {
	for _, o := range m {
		o.CaseStarted(info)
	}
}

func (m multiObserver) RequestsIssued(info CaseInfo, n int) {
	for _, o := range m {
		o.RequestsIssued(info, n)
	}
}

func (m multiObserver) RequestCompleted(info CaseInfo, latency time.Duration, outcome metrics.Outcome) {
	for _, o := range m {
		o.RequestCompleted(info, latency, outcome)
	}
}

func (m multiObserver) CaseFinalized(report CaseReport) {
	for _, o := range m {
		o.CaseFinalized(report)
	}
}

func newCaseInfo(c *Case, total int64, started time.Time) CaseInfo {
	return CaseInfo{
		Suite:        c.Suite,
		ID:           c.ID,
		TotalCases:   total,
		Concurrency:  c.Concurrency,
		Mode:         c.Mode(),
		Timeout:      c.Timeout,
		TimeoutMs:    c.Timeout.Milliseconds(),
		PayloadBytes: c.PayloadBytes,
		Duration:     c.Duration,
		DurationMs:   c.Duration.Milliseconds(),
		StartedAt:    started,
	}
}
