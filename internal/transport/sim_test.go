package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/metrics"
)

func simConfig(sim config.SimConfig) config.TransportConfig {
	return config.TransportConfig{Type: config.TransportSim, Sim: sim}
}

func TestSimSuccess(t *testing.T) {
	sim := NewSim(simConfig(config.SimConfig{Latency: time.Millisecond, Seed: 1}), Options{})
	c := newCollector(1)

	sim.Issue(request(c, 4, 1024, time.Second))
	got := c.next(t)

	assert.Equal(t, metrics.OutcomeSuccess, got.outcome.Kind)
	assert.Equal(t, int64(4), got.rc.CaseID)
	require.NoError(t, sim.Close())
}

func TestSimTimeoutWhenLatencyExceedsDeadline(t *testing.T) {
	sim := NewSim(simConfig(config.SimConfig{Latency: time.Second, Seed: 1}), Options{})
	c := newCollector(1)

	start := time.Now()
	sim.Issue(request(c, 1, 0, 20*time.Millisecond))
	got := c.next(t)

	assert.Equal(t, metrics.OutcomeTimeout, got.outcome.Kind)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.NoError(t, sim.Close())
}

func TestSimErrorRate(t *testing.T) {
	sim := NewSim(simConfig(config.SimConfig{ErrorRate: 1, Seed: 7}), Options{})
	c := newCollector(1)

	sim.Issue(request(c, 9, 0, time.Second))
	got := c.next(t)

	require.Equal(t, metrics.OutcomeError, got.outcome.Kind)
	var simErr *SimError
	require.True(t, errors.As(got.outcome.Err, &simErr))
	assert.Equal(t, int64(9), simErr.CaseID)
	assert.Equal(t, "500", got.outcome.Status)
	assert.Equal(t, "Simulated failure", metrics.FriendlyErrorName("*transport.SimError"))
	require.NoError(t, sim.Close())
}

func TestSimDrawIsDeterministicForSeed(t *testing.T) {
	cfg := simConfig(config.SimConfig{Latency: time.Millisecond, Jitter: 10 * time.Millisecond, ErrorRate: 0.5, Seed: 42})
	a, b := NewSim(cfg, Options{}), NewSim(cfg, Options{})
	for i := 0; i < 20; i++ {
		la, fa := a.draw(0)
		lb, fb := b.draw(0)
		require.Equal(t, la, lb)
		require.Equal(t, fa, fb)
		assert.GreaterOrEqual(t, la, time.Millisecond)
		assert.LessOrEqual(t, la, 11*time.Millisecond)
	}
}

func TestSimPayloadCost(t *testing.T) {
	sim := NewSim(simConfig(config.SimConfig{Latency: time.Millisecond, BytesPerMs: 1024, Seed: 1}), Options{})
	latency, fail := sim.draw(4096)
	assert.False(t, fail)
	assert.Equal(t, 5*time.Millisecond, latency)
}

func TestClosedTransportFailsRequests(t *testing.T) {
	sim := NewSim(simConfig(config.SimConfig{Seed: 1}), Options{})
	require.NoError(t, sim.Close())

	c := newCollector(1)
	sim.Issue(request(c, 1, 0, time.Second))
	got := c.next(t)
	assert.Equal(t, metrics.OutcomeError, got.outcome.Kind)
	assert.ErrorIs(t, got.outcome.Err, ErrClosed)
}
