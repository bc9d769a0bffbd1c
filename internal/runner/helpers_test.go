package runner_test

import (
	"sync"
	"testing"
	"time"

	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

// captureIssuer hands every issued request to the test.
type captureIssuer struct {
	ch chan runner.Request
}

func newCaptureIssuer() *captureIssuer {
	return &captureIssuer{ch: make(chan runner.Request, 4096)}
}

func (c *captureIssuer) Issue(req runner.Request) { c.ch <- req }

func (c *captureIssuer) next(t *testing.T) runner.Request {
	t.Helper()
	select {
	case req := <-c.ch:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an issued request")
		return runner.Request{}
	}
}

func (c *captureIssuer) pending() int { return len(c.ch) }

// asyncIssuer completes every request from its own goroutine after latency,
// tracking the highest number of requests it held at once, per case.
type asyncIssuer struct {
	latency time.Duration
	outcome func(n int64) metrics.Outcome

	mu          sync.Mutex
	calls       int64
	outstanding map[int64]int
	peaks       map[int64]int
}

func (a *asyncIssuer) Issue(req runner.Request) {
	id := req.Context.CaseID
	a.mu.Lock()
	if a.outstanding == nil {
		a.outstanding = map[int64]int{}
		a.peaks = map[int64]int{}
	}
	a.calls++
	n := a.calls
	a.outstanding[id]++
	if a.outstanding[id] > a.peaks[id] {
		a.peaks[id] = a.outstanding[id]
	}
	a.mu.Unlock()

	go func() {
		time.Sleep(a.latency)
		out := metrics.Success()
		if a.outcome != nil {
			out = a.outcome(n)
		}
		a.mu.Lock()
		a.outstanding[id]--
		a.mu.Unlock()
		req.Complete(out)
	}()
}

func (a *asyncIssuer) peak(caseID int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peaks[caseID]
}

type recordingReporter struct {
	mu    sync.Mutex
	cases []runner.CaseReport
	runs  []runner.RunReport
}

func (r *recordingReporter) ReportCase(c runner.CaseReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases = append(r.cases, c)
}

func (r *recordingReporter) ReportRun(run runner.RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

func (r *recordingReporter) caseIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.cases))
	for _, c := range r.cases {
		ids = append(ids, c.ID)
	}
	return ids
}
