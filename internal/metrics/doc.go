// Package metrics aggregates the outcome of every request of a benchmark case.
//
// A [Collector] belongs to exactly one case at a time. It is reset when the
// case starts, fed one [Outcome] per completed request, and frozen into a
// [CaseStats] when the case finalizes:
//
//	c := metrics.NewCollector()
//	c.Reset(start)
//
//	c.Record(latency, metrics.Classify(err))
//
//	stats := c.Finalize(now, payloadBytes)
//
// # Outcomes
//
// Every request ends as exactly one of success, timeout or error. Only
// successes contribute latency samples; timeouts and errors are counted and
// grouped by a friendly error name and status code.
//
// # Derived metrics
//
// [Collector.Finalize] computes success QPS, success throughput in MiB/s and
// the average success latency over the wall-clock time between case start
// and finalization. A case without successes reports zero latencies and
// HasLatency=false.
//
// # Thread Safety
//
// The Collector has no lock of its own. Its owner serializes every call,
// typically under the same mutex that guards the in-flight count.
package metrics
