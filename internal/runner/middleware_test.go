package runner_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

type recordingFailureLogger struct {
	mu       sync.Mutex
	outcomes []metrics.Outcome
}

func (r *recordingFailureLogger) LogFailure(_ runner.Request, outcome metrics.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type completerFunc func(runner.RequestContext, metrics.Outcome)

func (f completerFunc) Complete(rc runner.RequestContext, o metrics.Outcome) { f(rc, o) }

func TestWithLoggingLogsFailuresOnly(t *testing.T) {
	logger := &recordingFailureLogger{}
	var forwarded []metrics.OutcomeKind
	done := completerFunc(func(rc runner.RequestContext, o metrics.Outcome) {
		assert.Equal(t, int64(5), rc.CaseID)
		forwarded = append(forwarded, o.Kind)
	})

	outcomes := []metrics.Outcome{
		metrics.Success(),
		metrics.Timeout(nil),
		metrics.Failure(errors.New("boom")),
	}
	var i int
	inner := runner.IssuerFunc(func(req runner.Request) {
		req.Complete(outcomes[i])
		i++
	})

	iss := runner.WithLogging(inner, logger)
	rc := runner.RequestContext{CaseID: 5, IssuedAt: time.Now()}
	for range outcomes {
		iss.Issue(runner.NewRequest(rc, "s", 1, time.Second, done))
	}

	require.Len(t, logger.outcomes, 2)
	assert.Equal(t, metrics.OutcomeTimeout, logger.outcomes[0].Kind)
	assert.Equal(t, metrics.OutcomeError, logger.outcomes[1].Kind)
	assert.Equal(t, []metrics.OutcomeKind{metrics.OutcomeSuccess, metrics.OutcomeTimeout, metrics.OutcomeError}, forwarded)
}

func TestWithLoggingNilLogger(t *testing.T) {
	inner := runner.IssuerFunc(func(runner.Request) {})
	assert.NotNil(t, runner.WithLogging(inner, nil))
}
