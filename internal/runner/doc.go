// Package runner provides the case engine of casebench.
//
// A run is a list of suites, each an ordered list of cases built by a
// [Builder]. The [Controller] executes one case at a time:
//
//	idle -> warmup -> running -> quiescing -> finalized -> warmup -> ... -> all-done
//
// During warmup the controller sleeps for the settle pause. Entering running
// resets the case counters, fixes the case window (start + duration) and
// seeds the initial load. Every completion is recorded; the first one that
// lands at or after the window end flips the case to quiescing, after which
// no request is admitted for it. The completion that drains the last
// in-flight request of a quiescing case finalizes it.
//
// # Basic Usage
//
//	b := runner.NewBuilder()
//	suites := b.BuildSuites(resolved, issuer)
//
//	c := runner.New(runner.Options{
//		Settle:   2 * time.Second,
//		Reporter: reporter,
//		Logger:   logger,
//	})
//	report, err := c.Run(ctx, suites)
//
// # Issuer Interface
//
// The [Issuer] starts one request and returns immediately:
//
//	type Issuer interface {
//		Issue(req Request)
//	}
//
// Every issued [Request] must be completed exactly once with
// [Request.Complete]. Completions may come from any goroutine.
//
// # Admission
//
// A case with concurrency 0 runs the doubling policy: one seed request, then
// two new requests for every completion. A case with concurrency N keeps N
// requests in flight.
//
// # Errors
//
// Completing a request of a case that is not running, or finalizing a case
// with requests outstanding, is an [InvariantError]. It aborts the run and
// errors.Is(err, ErrInvariantViolation) reports true.
package runner
