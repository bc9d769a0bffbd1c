package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/casebench/internal/runner"
)

// Threshold represents a per-case assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "latency", "errors", "qps"
	Aggregate string  // e.g., "p99", "avg", "max", "rate", "count"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result is the outcome of evaluating one threshold against one case.
type Result struct {
	Threshold Threshold
	Suite     string
	CaseID    int64
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against finalized cases.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks every threshold against every case of the run.
func (e *Evaluator) Evaluate(report runner.RunReport) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds)*len(report.Cases))
	for _, c := range report.Cases {
		results = append(results, e.EvaluateCase(c)...)
	}
	return results
}

// EvaluateCase checks all thresholds against one case.
func (e *Evaluator) EvaluateCase(c runner.CaseReport) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, c))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, c runner.CaseReport) Result {
	label := fmt.Sprintf("[%s #%d]", c.Suite, c.ID)
	actual, err := extractMetricValue(t, c)
	if err != nil {
		return Result{
			Threshold: t,
			Suite:     c.Suite,
			CaseID:    c.ID,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s %s: error: %v", label, t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s %s: %.2f %s %.2f", status, label, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Suite:     c.Suite,
		CaseID:    c.ID,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// metricAliases maps the long metric names onto the per-case metrics.
var metricAliases = map[string]string{
	"http_req_duration": "latency",
	"http_req_failed":   "failures",
	"http_requests":     "requests",
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "latency:p99 < 500"      (latency percentile in ms)
// - "latency:avg < 200"      (average success latency in ms)
// - "errors:rate < 0.01"     (error share of completed requests)
// - "timeouts:count == 0"    (timeout count)
// - "failures:rate < 0.05"   (timeouts and errors together)
// - "requests:count > 1000"  (completed requests)
// - "qps:rate > 100"         (successes per second)
// - "throughput:rate > 10"   (MiB per second)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	// Pattern: metric:aggregate operator value
	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'latency:p99 < 500')", s)
	}

	metric := matches[1]
	if alias, ok := metricAliases[metric]; ok {
		metric = alias
	}
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	aggregates, ok := validAggregates[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: latency, errors, timeouts, failures, requests, qps, throughput)", metric)
	}

	if !contains(aggregates, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(aggregates, ", "))
	}

	if !contains([]string{"<", "<=", ">", ">=", "=="}, operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var validAggregates = map[string][]string{
	"latency":    {"p50", "p90", "p95", "p99", "avg", "mean", "min", "max"},
	"errors":     {"count", "rate"},
	"timeouts":   {"count", "rate"},
	"failures":   {"count", "rate"},
	"requests":   {"count", "rate"},
	"qps":        {"rate"},
	"throughput": {"rate"},
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, c runner.CaseReport) (float64, error) {
	stats := c.Stats
	switch t.Metric {
	case "latency":
		return extractLatencyMetric(t.Aggregate, c)
	case "errors":
		return countOrRate(t.Aggregate, stats.Errors, stats.Total)
	case "timeouts":
		return countOrRate(t.Aggregate, stats.Timeouts, stats.Total)
	case "failures":
		return countOrRate(t.Aggregate, stats.Errors+stats.Timeouts, stats.Total)
	case "requests":
		if t.Aggregate == "rate" {
			secs := stats.Elapsed.Seconds()
			if secs <= 0 {
				return 0, nil
			}
			return float64(stats.Total) / secs, nil
		}
		return float64(stats.Total), nil
	case "qps":
		return stats.QPS, nil
	case "throughput":
		return stats.ThroughputMiBps, nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, c runner.CaseReport) (float64, error) {
	stats := c.Stats
	if !stats.HasLatency {
		return 0, fmt.Errorf("case has no successful requests")
	}
	switch aggregate {
	case "p50":
		return stats.P50LatencyMs, nil
	case "p90":
		return stats.P90LatencyMs, nil
	case "p95":
		// Approximate p95 from p90 and p99
		return (stats.P90LatencyMs + stats.P99LatencyMs) / 2, nil
	case "p99":
		return stats.P99LatencyMs, nil
	case "avg", "mean":
		return stats.AvgLatencyMs, nil
	case "min":
		return stats.MinLatencyMs, nil
	case "max":
		return stats.MaxLatencyMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for latency", aggregate)
	}
}

func countOrRate(aggregate string, count, total int64) (float64, error) {
	switch aggregate {
	case "count":
		return float64(count), nil
	case "rate":
		if total == 0 {
			return 0, nil
		}
		return float64(count) / float64(total), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q (use 'count' or 'rate')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
