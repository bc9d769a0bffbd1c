package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
	"github.com/torosent/casebench/internal/threshold"
)

// FormatCaseStart renders the line announcing a case.
func FormatCaseStart(info runner.CaseInfo) string {
	return fmt.Sprintf("TEST %s(%d/%d):: concurrency %d, timeout(ms) %d, payload(byte) %d",
		info.Suite, info.ID, info.TotalCases, info.Concurrency, info.TimeoutMs, info.PayloadBytes)
}

// FormatCaseLine renders the one-line result of a finalized case.
func FormatCaseLine(c runner.CaseReport) string {
	s := c.Stats
	latency := "n/a"
	if s.HasLatency {
		latency = fmt.Sprintf("%.2f/%.2f/%.2f", s.AvgLatencyMs, s.MinLatencyMs, s.MaxLatencyMs)
	}
	line := fmt.Sprintf("%s(%d/%d) concurrency %d, timeout(ms) %d, payload(byte) %d:: tmo/err/suc %d/%d/%d, latency(ms) avg/min/max %s, qps %.2f, thp %.2f MB/s",
		c.Suite, c.ID, c.TotalCases, c.Concurrency, c.TimeoutMs, c.PayloadBytes,
		s.Timeouts, s.Errors, s.Successes, latency, s.QPS, s.ThroughputMiBps)
	if c.Interrupted {
		line += " (interrupted)"
	}
	return line
}

// TextReporter prints the case lines as cases start and finish, then repeats
// every case line in the run summary.
type TextReporter struct {
	runner.NopObserver

	// Evaluator, when set, adds threshold results after the run summary.
	Evaluator *threshold.Evaluator

	mu sync.Mutex
	w  io.Writer
}

func NewTextReporter(w io.Writer) *TextReporter {
	if w == nil {
		w = io.Discard
	}
	return &TextReporter{w: w}
}

func (r *TextReporter) CaseStarted(info runner.CaseInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, FormatCaseStart(info))
}

func (r *TextReporter) ReportCase(c runner.CaseReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, FormatCaseLine(c))
	writeFailureBreakdown(r.w, c.Stats, "  ")
}

func (r *TextReporter) ReportRun(report runner.RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	PrintRunSummary(r.w, report)
	if r.Evaluator != nil {
		PrintThresholdResults(r.w, r.Evaluator.Evaluate(report))
	}
}

// PrintRunSummary outputs the whole-run summary with one line per case.
func PrintRunSummary(w io.Writer, report runner.RunReport) {
	fmt.Fprintln(w, "\n--- Run Summary ---")
	if report.Name != "" {
		fmt.Fprintf(w, "Name:              %s\n", report.Name)
	}
	fmt.Fprintf(w, "Run ID:            %s\n", report.ID)
	fmt.Fprintf(w, "Duration:          %s\n", report.Duration)
	fmt.Fprintf(w, "Cases:             %d/%d\n", len(report.Cases), report.TotalCases)
	if report.Interrupted {
		fmt.Fprintln(w, "Status:            interrupted")
	}
	if len(report.Cases) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, c := range report.Cases {
		fmt.Fprintln(w, FormatCaseLine(c))
	}
}

func writeFailureBreakdown(w io.Writer, stats metrics.CaseStats, indent string) {
	for _, row := range metrics.SortErrorTypes(stats.ErrorTypes) {
		fmt.Fprintf(w, "%s%s: %d\n", indent, row.Type, row.Count)
	}
	for _, row := range metrics.FlattenStatusBuckets(stats.StatusBuckets) {
		fmt.Fprintf(w, "%s%s %s: %d\n", indent, strings.ToUpper(row.Kind), row.Code, row.Count)
	}
}

// JSONReporter writes the run report as indented JSON once the run ends.
type JSONReporter struct {
	Evaluator *threshold.Evaluator

	w io.Writer
}

func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{w: w}
}

func (r *JSONReporter) ReportCase(runner.CaseReport) {}

func (r *JSONReporter) ReportRun(report runner.RunReport) {
	_ = PrintJSONReport(r.w, documentFor(report, r.Evaluator))
}

// YAMLReporter writes the run report as YAML once the run ends.
type YAMLReporter struct {
	Evaluator *threshold.Evaluator

	w io.Writer
}

func NewYAMLReporter(w io.Writer) *YAMLReporter {
	return &YAMLReporter{w: w}
}

func (r *YAMLReporter) ReportCase(runner.CaseReport) {}

func (r *YAMLReporter) ReportRun(report runner.RunReport) {
	_ = PrintYAMLReport(r.w, documentFor(report, r.Evaluator))
}

func documentFor(report runner.RunReport, ev *threshold.Evaluator) Document {
	if ev == nil {
		return Document{RunReport: report}
	}
	return NewDocument(report, ev.Evaluate(report))
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// MultiReporter fans reports out to several reporters in order.
type MultiReporter []runner.Reporter

func (m MultiReporter) ReportCase(c runner.CaseReport) {
	for _, r := range m {
		r.ReportCase(c)
	}
}

func (m MultiReporter) ReportRun(report runner.RunReport) {
	for _, r := range m {
		r.ReportRun(report)
	}
}

// NewReporter returns the stdout reporter for a format name. A non-nil ev
// evaluates thresholds into the run output.
func NewReporter(format string, w io.Writer, ev *threshold.Evaluator) (runner.Reporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		r := NewTextReporter(w)
		r.Evaluator = ev
		return r, nil
	case "json":
		r := NewJSONReporter(w)
		r.Evaluator = ev
		return r, nil
	case "yaml", "yml":
		r := NewYAMLReporter(w)
		r.Evaluator = ev
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}
