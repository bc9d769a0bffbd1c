package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

type completion struct {
	rc      runner.RequestContext
	outcome metrics.Outcome
}

// collector records every completion a transport reports.
type collector struct {
	ch chan completion
}

func newCollector(n int) *collector {
	return &collector{ch: make(chan completion, n)}
}

func (c *collector) Complete(rc runner.RequestContext, outcome metrics.Outcome) {
	c.ch <- completion{rc: rc, outcome: outcome}
}

func (c *collector) next(t *testing.T) completion {
	t.Helper()
	select {
	case got := <-c.ch:
		return got
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for a completion")
		return completion{}
	}
}

func request(c *collector, caseID int64, payload int, timeout time.Duration) runner.Request {
	return runner.NewRequest(
		runner.RequestContext{CaseID: caseID, Seq: 1, IssuedAt: time.Now()},
		"suite", payload, timeout, c,
	)
}
