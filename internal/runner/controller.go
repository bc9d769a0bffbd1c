package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/casebench/internal/metrics"
)

// Controller runs cases one at a time. Completions may arrive from any
// goroutine; the in-flight count, the quiescing flag and the collector are
// guarded by one mutex.
type Controller struct {
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	started   bool
	state     State
	cursor    Cursor
	total     int64
	current   *Case
	info      CaseInfo
	issuer    Issuer
	policy    admissionPolicy
	collector *metrics.Collector
	seq       uint64
	inFlight  int
	issued    int64
	quiescing bool
	end       time.Time
	finished  chan struct{}
	notifying int  // completions whose observer call has not returned
	draining  bool // finalized, waiting on notifying to reach zero
	err       error
	aborted   chan struct{}

	done   chan struct{}
	report RunReport
	runErr error
}

func New(opts Options) *Controller {
	opts.normalize()
	return &Controller{
		opts:      opts,
		log:       opts.Logger,
		collector: metrics.NewCollector(),
		aborted:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run executes every case of every suite in order and blocks until the run
// ends. A cancelled ctx drains the active case and returns ctx.Err() with a
// partial report. An invariant violation aborts the run with an error
// matching ErrInvariantViolation.
func (c *Controller) Run(ctx context.Context, suites []*Suite) (RunReport, error) {
	if err := c.Start(ctx, suites); err != nil {
		return RunReport{}, err
	}
	return c.Wait()
}

// Start begins the run in a new goroutine. A controller runs once.
func (c *Controller) Start(ctx context.Context, suites []*Suite) error {
	for _, s := range suites {
		if s.Issuer == nil && len(s.Cases) > 0 {
			return fmt.Errorf("suite %q has no issuer", s.Name)
		}
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("controller already started")
	}
	c.started = true
	c.total = CountCases(suites)
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		c.report, c.runErr = c.run(ctx, suites)
	}()
	return nil
}

// Wait blocks until a started run ends.
func (c *Controller) Wait() (RunReport, error) {
	<-c.done
	return c.report, c.runErr
}

// Snapshot returns the current progress.
func (c *Controller) Snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := Progress{
		State:      c.state,
		Cursor:     c.cursor,
		TotalCases: c.total,
		InFlight:   c.inFlight,
	}
	// During warmup the collector still holds the previous case.
	if c.current != nil && c.state != StateWarmup {
		p.Case = c.info
		p.Issued = c.issued
		p.Counts = c.collector.Counts()
		if c.state == StateRunning || c.state == StateQuiescing {
			p.Elapsed = c.opts.Clock.Now().Sub(c.info.StartedAt)
		}
	}
	return p
}

func (c *Controller) run(ctx context.Context, suites []*Suite) (RunReport, error) {
	report := RunReport{
		ID:         c.opts.NewRunID(),
		Name:       c.opts.Name,
		StartedAt:  c.opts.Clock.Now(),
		TotalCases: CountCases(suites),
	}
	c.log.Info("run started",
		zap.String("run", report.ID),
		zap.Int("suites", len(suites)),
		zap.Int64("cases", report.TotalCases),
	)

	err := c.drive(ctx, suites, &report)

	c.mu.Lock()
	report.Cursor = c.cursor
	if !errors.Is(err, ErrInvariantViolation) {
		c.state = StateAllDone
	}
	c.mu.Unlock()

	report.FinishedAt = c.opts.Clock.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	report.DurationMs = float64(report.Duration.Milliseconds())

	if errors.Is(err, ErrInvariantViolation) {
		c.log.Error("run aborted", zap.String("run", report.ID), zap.Error(err))
		return report, err
	}

	c.opts.Reporter.ReportRun(report)
	c.log.Info("run finished",
		zap.String("run", report.ID),
		zap.Int64("started_cases", report.Cursor.Started),
		zap.Bool("interrupted", report.Interrupted),
		zap.Duration("elapsed", report.Duration),
	)
	return report, err
}

func (c *Controller) drive(ctx context.Context, suites []*Suite, report *RunReport) error {
	for si, suite := range suites {
		for ci, kase := range suite.Cases {
			if err := ctx.Err(); err != nil {
				report.Interrupted = true
				return err
			}

			c.mu.Lock()
			c.state = StateWarmup
			c.cursor.Suite = si
			c.cursor.Case = ci
			c.mu.Unlock()

			c.log.Debug("settling before case", zap.Int64("case", kase.ID), zap.Duration("settle", c.opts.Settle))
			if err := c.opts.Sleep(ctx, c.opts.Settle); err != nil {
				report.Interrupted = true
				return err
			}

			select {
			case <-c.aborted:
				return c.abortErr()
			default:
			}

			finished, seeds, info, err := c.startCase(suite, kase)
			if err != nil {
				return err
			}
			c.opts.Observer.CaseStarted(info)
			c.issue(suite.Issuer, seeds, info)

			interrupted := false
			select {
			case <-finished:
			case <-c.aborted:
				return c.abortErr()
			case <-ctx.Done():
				interrupted = true
				c.forceQuiesce()
				select {
				case <-finished:
				case <-c.aborted:
					return c.abortErr()
				}
			}

			cr := CaseReport{
				CaseInfo:    info,
				Issued:      kase.Issued,
				Interrupted: interrupted,
				Stats:       kase.Stats,
			}
			report.Cases = append(report.Cases, cr)
			c.opts.Reporter.ReportCase(cr)
			c.opts.Observer.CaseFinalized(cr)

			if interrupted {
				report.Interrupted = true
				return ctx.Err()
			}
		}
	}
	return nil
}

// startCase moves the controller from warmup to running and reserves the
// case's seed requests.
func (c *Controller) startCase(suite *Suite, kase *Case) (<-chan struct{}, []Request, CaseInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight != 0 {
		err := invariantf(kase.ID, "in-flight count is %d at case start", c.inFlight)
		c.failLocked(err)
		return nil, nil, CaseInfo{}, err
	}

	now := c.opts.Clock.Now()
	c.collector.Reset(now)
	if !c.collector.IsReset() {
		err := invariantf(kase.ID, "counters not zero at case start")
		c.failLocked(err)
		return nil, nil, CaseInfo{}, err
	}

	c.seq++
	c.current = kase
	c.issuer = suite.Issuer
	c.policy = newAdmissionPolicy(kase.Concurrency)
	c.quiescing = false
	c.issued = 0
	c.end = now.Add(kase.Duration)
	c.cursor.Started++
	c.finished = make(chan struct{})
	c.state = StateRunning
	kase.StartedAt = now
	c.info = newCaseInfo(kase, c.total, now)

	c.log.Info("case started",
		zap.String("suite", kase.Suite),
		zap.Int64("case", kase.ID),
		zap.Int64("total", c.total),
		zap.Int("concurrency", kase.Concurrency),
		zap.String("mode", kase.Mode()),
		zap.Duration("timeout", kase.Timeout),
		zap.Int("payload_bytes", kase.PayloadBytes),
		zap.Duration("duration", kase.Duration),
	)

	return c.finished, c.beginLocked(c.policy.seed()), c.info, nil
}

// Complete records the outcome of one request and admits more load unless
// the case is quiescing. The last completion of a quiescing case finalizes
// it.
func (c *Controller) Complete(rc RequestContext, outcome metrics.Outcome) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	if err := c.checkCompletionLocked(rc); err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		return
	}

	now := c.opts.Clock.Now()
	latency := now.Sub(rc.IssuedAt)
	c.inFlight--
	c.collector.Record(latency, outcome)

	if !c.quiescing && !now.Before(c.end) {
		c.quiescing = true
		c.state = StateQuiescing
		c.log.Info("case quiescing",
			zap.Int64("case", c.current.ID),
			zap.Int("in_flight", c.inFlight),
			zap.Int64("issued", c.issued),
		)
	}

	var (
		reqs  []Request
		again bool
	)
	if c.quiescing {
		if c.inFlight == 0 {
			if err := c.finalizeLocked(now); err != nil {
				c.failLocked(err)
			} else {
				c.draining = true
			}
		}
	} else {
		var n int
		n, again = c.policy.admit(c.inFlight)
		reqs = c.beginLocked(n)
	}
	seq := c.seq
	iss := c.issuer
	info := c.info
	c.notifying++
	c.mu.Unlock()

	c.opts.Observer.RequestCompleted(info, latency, outcome)

	c.mu.Lock()
	c.notifying--
	c.releaseLocked()
	c.mu.Unlock()

	c.issue(iss, reqs, info)
	if again {
		c.admitMore(seq, iss, info)
	}
}

// admitMore keeps asking the policy for load until it declines. Each round
// re-checks, under the lock, that the same case is still running.
func (c *Controller) admitMore(seq uint64, iss Issuer, info CaseInfo) {
	for {
		c.mu.Lock()
		if c.err != nil || c.seq != seq || c.quiescing || c.state != StateRunning {
			c.mu.Unlock()
			return
		}
		n, again := c.policy.admit(c.inFlight)
		reqs := c.beginLocked(n)
		c.mu.Unlock()

		c.issue(iss, reqs, info)
		if !again || n == 0 {
			return
		}
	}
}

// beginLocked reserves n in-flight slots and builds their requests.
func (c *Controller) beginLocked(n int) []Request {
	if n <= 0 {
		return nil
	}
	rc := RequestContext{
		CaseID:   c.current.ID,
		Seq:      c.seq,
		IssuedAt: c.opts.Clock.Now(),
	}
	reqs := make([]Request, n)
	for i := range reqs {
		reqs[i] = NewRequest(rc, c.current.Suite, c.current.PayloadBytes, c.current.Timeout, c)
	}
	c.inFlight += n
	c.issued += int64(n)
	return reqs
}

func (c *Controller) issue(iss Issuer, reqs []Request, info CaseInfo) {
	if len(reqs) == 0 {
		return
	}
	c.opts.Observer.RequestsIssued(info, len(reqs))
	for _, r := range reqs {
		iss.Issue(r)
	}
}

func (c *Controller) checkCompletionLocked(rc RequestContext) error {
	if c.current == nil || rc.Seq != c.seq || rc.CaseID != c.current.ID {
		active := int64(0)
		if c.current != nil {
			active = c.current.ID
		}
		return invariantf(rc.CaseID, "completion for generation %d while case %d (generation %d) is active", rc.Seq, active, c.seq)
	}
	if c.state != StateRunning && c.state != StateQuiescing {
		return invariantf(rc.CaseID, "completion while %s", c.state)
	}
	if c.inFlight <= 0 {
		return invariantf(rc.CaseID, "completion with in-flight count %d", c.inFlight)
	}
	return nil
}

// finalizeLocked freezes the active case's metrics. It refuses to run while
// any request is outstanding. The caller marks the case draining and
// releases the driver through releaseLocked.
func (c *Controller) finalizeLocked(now time.Time) error {
	if c.current == nil {
		return invariantf(0, "finalize without an active case")
	}
	id := c.current.ID
	if c.inFlight != 0 {
		return invariantf(id, "finalize with %d requests in flight", c.inFlight)
	}
	if c.current.Finalized {
		return invariantf(id, "case finalized twice")
	}
	if total := c.collector.Total(); total != c.issued {
		return invariantf(id, "recorded %d outcomes for %d issued requests", total, c.issued)
	}

	stats := c.collector.Finalize(now, c.current.PayloadBytes)
	c.current.Stats = stats
	c.current.Issued = c.issued
	c.current.Finalized = true
	c.state = StateFinalized

	c.log.Info("case finalized",
		zap.Int64("case", id),
		zap.Int64("successes", stats.Successes),
		zap.Int64("timeouts", stats.Timeouts),
		zap.Int64("errors", stats.Errors),
		zap.Float64("qps", stats.QPS),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return nil
}

// forceQuiesce stops new issuance for the active case. It finalizes at once
// if nothing is in flight.
func (c *Controller) forceQuiesce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return
	}
	c.quiescing = true
	c.state = StateQuiescing
	c.log.Warn("run interrupted, draining case",
		zap.Int64("case", c.current.ID),
		zap.Int("in_flight", c.inFlight),
	)
	if c.inFlight == 0 {
		if err := c.finalizeLocked(c.opts.Clock.Now()); err != nil {
			c.failLocked(err)
			return
		}
		c.draining = true
		c.releaseLocked()
	}
}

// releaseLocked lets the driver report a finalized case once no completion
// of it is still inside its observer call, so observers see every
// RequestCompleted of a case before its CaseFinalized.
func (c *Controller) releaseLocked() {
	if c.draining && c.notifying == 0 {
		c.draining = false
		close(c.finished)
	}
}

// failLocked records the first invariant violation and aborts the run.
func (c *Controller) failLocked(err error) {
	if c.err != nil {
		c.log.Error("invariant violation after abort", zap.Error(err))
		return
	}
	c.err = err
	c.quiescing = true
	c.log.Error("invariant violation", zap.Error(err))
	close(c.aborted)
}

func (c *Controller) abortErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
