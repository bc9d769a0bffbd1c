package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/torosent/casebench/internal/metrics"
)

func TestNewAdmissionPolicy(t *testing.T) {
	assert.IsType(t, doublingPolicy{}, newAdmissionPolicy(0))
	assert.Equal(t, windowPolicy{size: 5}, newAdmissionPolicy(5))
}

func TestDoublingPolicy(t *testing.T) {
	p := doublingPolicy{}
	assert.Equal(t, 1, p.seed())

	for _, inFlight := range []int{0, 1, 100} {
		n, again := p.admit(inFlight)
		assert.Equal(t, 2, n)
		assert.False(t, again)
	}
}

func TestWindowPolicy(t *testing.T) {
	tests := []struct {
		size, inFlight int
		wantN          int
		wantAgain      bool
	}{
		{size: 1, inFlight: 0, wantN: 1, wantAgain: true},
		{size: 1, inFlight: 1, wantN: 0, wantAgain: false},
		{size: 4, inFlight: 2, wantN: 1, wantAgain: true},
		{size: 4, inFlight: 4, wantN: 0, wantAgain: false},
		{size: 4, inFlight: 5, wantN: 0, wantAgain: false},
	}

	for _, tt := range tests {
		p := windowPolicy{size: tt.size}
		assert.Equal(t, tt.size, p.seed())
		n, again := p.admit(tt.inFlight)
		assert.Equal(t, tt.wantN, n, "size=%d inFlight=%d", tt.size, tt.inFlight)
		assert.Equal(t, tt.wantAgain, again, "size=%d inFlight=%d", tt.size, tt.inFlight)
	}
}

func TestFinalizeRejectsOutstandingRequests(t *testing.T) {
	c := New(Options{Logger: zaptest.NewLogger(t)})
	c.current = &Case{ID: 7}
	c.finished = make(chan struct{})
	c.inFlight = 2
	c.issued = 2

	err := c.finalizeLocked(time.Now())
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.False(t, c.current.Finalized)

	c.inFlight = 0
	c.collector.Reset(time.Now())
	c.collector.Record(time.Millisecond, metrics.Success())
	c.collector.Record(0, metrics.Timeout(nil))
	require.NoError(t, c.finalizeLocked(time.Now()))
	assert.True(t, c.current.Finalized)
	assert.Equal(t, StateFinalized, c.state)

	err = c.finalizeLocked(time.Now())
	require.ErrorIs(t, err, ErrInvariantViolation, "finalizing twice must be rejected")
}

func TestFinalizeRejectsLostOutcomes(t *testing.T) {
	c := New(Options{Logger: zaptest.NewLogger(t)})
	c.current = &Case{ID: 3}
	c.finished = make(chan struct{})
	c.issued = 2
	c.collector.Reset(time.Now())
	c.collector.Record(time.Millisecond, metrics.Success())

	err := c.finalizeLocked(time.Now())
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestStartCaseRejectsOutstandingRequests(t *testing.T) {
	c := New(Options{Logger: zaptest.NewLogger(t)})
	c.inFlight = 1

	_, _, _, err := c.startCase(&Suite{Name: "s"}, &Case{ID: 1})
	require.ErrorIs(t, err, ErrInvariantViolation)

	select {
	case <-c.aborted:
	default:
		t.Fatal("start invariant failure must abort the run")
	}
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), 0))
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestOptionsNormalize(t *testing.T) {
	o := Options{Settle: -time.Second}
	o.normalize()

	assert.Equal(t, time.Duration(0), o.Settle)
	assert.Equal(t, SystemClock, o.Clock)
	assert.NotNil(t, o.Reporter)
	assert.NotNil(t, o.Observer)
	assert.NotNil(t, o.Logger)
	assert.NotNil(t, o.Sleep)
	require.NotNil(t, o.NewRunID)
	assert.Len(t, o.NewRunID(), 26)
	assert.NotEqual(t, o.NewRunID(), o.NewRunID())
}
