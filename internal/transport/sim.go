package transport

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

// Sim models a target in process. Each request takes Latency plus a uniform
// share of Jitter, plus one millisecond per BytesPerMs payload bytes, and
// fails with probability ErrorRate. A request whose modelled latency exceeds
// the case timeout completes as a timeout when the deadline fires.
type Sim struct {
	*executor

	cfg config.SimConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSim(cfg config.TransportConfig, opts Options) *Sim {
	seed := uint64(cfg.Sim.Seed)
	if cfg.Sim.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	t := &Sim{
		cfg: cfg.Sim,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	t.executor = newExecutor(t.Name(), cfg, opts, t.do)
	return t
}

func (t *Sim) Name() string { return "sim" }

// draw returns the modelled latency of one request and whether it fails.
func (t *Sim) draw(payloadBytes int) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	latency := t.cfg.Latency
	if t.cfg.Jitter > 0 {
		latency += time.Duration(t.rng.Int64N(int64(t.cfg.Jitter) + 1))
	}
	if t.cfg.BytesPerMs > 0 && payloadBytes > 0 {
		latency += time.Duration(payloadBytes) * time.Millisecond / time.Duration(t.cfg.BytesPerMs)
	}
	fail := t.cfg.ErrorRate > 0 && t.rng.Float64() < t.cfg.ErrorRate
	return latency, fail
}

func (t *Sim) do(ctx context.Context, req runner.Request) metrics.Outcome {
	latency, fail := t.draw(req.PayloadBytes)

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return metrics.Timeout(ctx.Err())
		}
		return metrics.Failure(ctx.Err())
	}

	if fail {
		return metrics.Failure(&SimError{CaseID: req.Context.CaseID}).WithStatus("500")
	}
	return metrics.Success()
}

func (t *Sim) Close() error {
	t.wait()
	return nil
}
