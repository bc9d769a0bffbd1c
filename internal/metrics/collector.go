package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// MinLatencySentinel is the minimum latency of a case with no successes.
	MinLatencySentinel = time.Duration(math.MaxInt64)

	mebibyte = 1 << 20
)

// Collector accumulates the outcome counters of the current case.
type Collector struct {
	hist         *hdrhistogram.Histogram
	successes    int64
	timeouts     int64
	errors       int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByType map[string]int64
	statuses     map[string]map[string]int
	start        time.Time
}

// Counts is a live view of the outcome counters.
type Counts struct {
	Successes int64 `json:"successes" yaml:"successes"`
	Timeouts  int64 `json:"timeouts" yaml:"timeouts"`
	Errors    int64 `json:"errors" yaml:"errors"`
}

// CaseStats holds the frozen counters and derived metrics of a finalized case.
type CaseStats struct {
	Counts `yaml:",inline"`

	Total      int64 `json:"total" yaml:"total"`
	HasLatency bool  `json:"has_latency" yaml:"has_latency"`

	MinLatency time.Duration `json:"-" yaml:"-"`
	MaxLatency time.Duration `json:"-" yaml:"-"`
	AvgLatency time.Duration `json:"-" yaml:"-"`
	P50Latency time.Duration `json:"-" yaml:"-"`
	P90Latency time.Duration `json:"-" yaml:"-"`
	P99Latency time.Duration `json:"-" yaml:"-"`
	SumLatency time.Duration `json:"-" yaml:"-"`
	Elapsed    time.Duration `json:"-" yaml:"-"`

	QPS             float64 `json:"qps" yaml:"qps"`
	ThroughputMiBps float64 `json:"throughput_mib_per_sec" yaml:"throughput_mib_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	AvgLatencyMs float64 `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	P50LatencyMs float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	ElapsedMs    float64 `json:"elapsed_ms" yaml:"elapsed_ms"`

	ErrorTypes    map[string]int            `json:"error_types,omitempty" yaml:"error_types,omitempty"`
	StatusBuckets map[string]map[string]int `json:"status_buckets,omitempty" yaml:"status_buckets,omitempty"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	c := &Collector{hist: h}
	c.Reset(time.Time{})
	return c
}

// Reset zeroes every counter and sets the extrema to their sentinels.
func (c *Collector) Reset(start time.Time) {
	c.hist.Reset()
	c.successes = 0
	c.timeouts = 0
	c.errors = 0
	c.minLatency = MinLatencySentinel
	c.maxLatency = 0
	c.sumLatency = 0
	c.errorsByType = make(map[string]int64)
	c.statuses = make(map[string]map[string]int)
	c.start = start
}

// IsReset reports whether the collector is in its just-reset state.
func (c *Collector) IsReset() bool {
	return c.successes == 0 && c.timeouts == 0 && c.errors == 0 &&
		c.sumLatency == 0 && c.maxLatency == 0 && c.minLatency == MinLatencySentinel &&
		c.hist.TotalCount() == 0
}

// Start is the timestamp passed to the last Reset.
func (c *Collector) Start() time.Time { return c.start }

// Record updates exactly one of the timeout, error or success counters.
func (c *Collector) Record(latency time.Duration, o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		c.successes++
		c.sumLatency += latency
		if latency < c.minLatency {
			c.minLatency = latency
		}
		if latency > c.maxLatency {
			c.maxLatency = latency
		}
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
		return
	case OutcomeTimeout:
		c.timeouts++
	default:
		c.errors++
		errorType := "Unknown error"
		if o.Err != nil {
			errorType = FriendlyErrorName(fmt.Sprintf("%T", o.Err))
		}
		c.errorsByType[errorType]++
	}
	if o.Status != "" {
		kind := o.Kind.String()
		if c.statuses[kind] == nil {
			c.statuses[kind] = make(map[string]int)
		}
		c.statuses[kind][o.Status]++
	}
}

// Counts returns the live outcome counters.
func (c *Collector) Counts() Counts {
	return Counts{Successes: c.successes, Timeouts: c.timeouts, Errors: c.errors}
}

// Total is the number of outcomes recorded since the last Reset.
func (c *Collector) Total() int64 {
	return c.successes + c.timeouts + c.errors
}

// Finalize derives the case metrics over the wall-clock time between the
// last Reset and now.
func (c *Collector) Finalize(now time.Time, payloadBytes int) CaseStats {
	stats := CaseStats{
		Counts:     c.Counts(),
		Total:      c.Total(),
		SumLatency: c.sumLatency,
		Elapsed:    now.Sub(c.start),
	}
	if stats.Elapsed < 0 {
		stats.Elapsed = 0
	}

	if c.successes > 0 {
		stats.HasLatency = true
		stats.MinLatency = c.minLatency
		stats.MaxLatency = c.maxLatency
		stats.AvgLatency = time.Duration(int64(c.sumLatency) / c.successes)
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	if secs := stats.Elapsed.Seconds(); secs > 0 {
		stats.QPS = float64(c.successes) / secs
		stats.ThroughputMiBps = float64(c.successes) * float64(payloadBytes) / mebibyte / secs
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.AvgLatencyMs = toMillis(stats.AvgLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)
	stats.ElapsedMs = toMillis(stats.Elapsed)

	if len(c.errorsByType) > 0 {
		stats.ErrorTypes = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.ErrorTypes[k] = int(v)
		}
	}
	if len(c.statuses) > 0 {
		stats.StatusBuckets = make(map[string]map[string]int, len(c.statuses))
		for kind, codes := range c.statuses {
			copied := make(map[string]int, len(codes))
			for code, n := range codes {
				copied[code] = n
			}
			stats.StatusBuckets[kind] = copied
		}
	}

	return stats
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
