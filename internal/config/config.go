package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// TransportType selects the load issuance backend.
type TransportType string

const (
	TransportSim       TransportType = "sim"
	TransportHTTP      TransportType = "http"
	TransportWebSocket TransportType = "websocket"
)

// Built-in case matrix defaults used when neither the defaults section nor a
// suite section supplies a list.
var (
	DefaultConcurrency  = []int{1, 10, 100, 1000}
	DefaultTimeoutsMs   = []int{10000}
	DefaultPayloadBytes = []int{1024, 64 * 1024, 512 * 1024, 1024 * 1024}
)

const (
	DefaultCaseDuration = 10 * time.Second
	DefaultSettle       = 2 * time.Second
	DefaultSuiteName    = "default"
)

type Config struct {
	Name       string                 `mapstructure:"name"`
	Settle     time.Duration          `mapstructure:"settle"`
	Defaults   CaseOptions            `mapstructure:"defaults"`
	Suites     []SuiteConfig          `mapstructure:"suites"`
	Sections   map[string]CaseOptions `mapstructure:"sections"`
	Transport  TransportConfig        `mapstructure:"transport"`
	Output     OutputConfig           `mapstructure:"output"`
	Log        LogConfig              `mapstructure:"log"`
	Tracing    TracingConfig          `mapstructure:"tracing"`
	Metrics    MetricsConfig          `mapstructure:"metrics"`
	Thresholds []string               `mapstructure:"thresholds"`
	ConfigFile string                 `mapstructure:"-"`
}

// CaseOptions are the option lists a suite section resolves to. Each list is
// expanded into the case matrix; Duration applies to every case.
type CaseOptions struct {
	Concurrency  []int         `mapstructure:"concurrency"`
	TimeoutsMs   []int         `mapstructure:"timeouts_ms"`
	PayloadBytes []int         `mapstructure:"payload_bytes"`
	Duration     time.Duration `mapstructure:"duration"`
}

// BuiltinCaseOptions returns a fresh copy of the built-in option set.
func BuiltinCaseOptions() CaseOptions {
	return CaseOptions{
		Concurrency:  append([]int(nil), DefaultConcurrency...),
		TimeoutsMs:   append([]int(nil), DefaultTimeoutsMs...),
		PayloadBytes: append([]int(nil), DefaultPayloadBytes...),
		Duration:     DefaultCaseDuration,
	}
}

// WithDefaults fills every empty list (and a zero duration) from defaults.
func (o CaseOptions) WithDefaults(defaults CaseOptions) CaseOptions {
	out := CaseOptions{
		Concurrency:  append([]int(nil), o.Concurrency...),
		TimeoutsMs:   append([]int(nil), o.TimeoutsMs...),
		PayloadBytes: append([]int(nil), o.PayloadBytes...),
		Duration:     o.Duration,
	}
	if len(out.Concurrency) == 0 {
		out.Concurrency = append([]int(nil), defaults.Concurrency...)
	}
	if len(out.TimeoutsMs) == 0 {
		out.TimeoutsMs = append([]int(nil), defaults.TimeoutsMs...)
	}
	if len(out.PayloadBytes) == 0 {
		out.PayloadBytes = append([]int(nil), defaults.PayloadBytes...)
	}
	if out.Duration <= 0 {
		out.Duration = defaults.Duration
	}
	return out
}

type SuiteConfig struct {
	Name    string `mapstructure:"name"`
	Section string `mapstructure:"section"` // defaults to Name
}

// SectionName returns the config section the suite resolves its options from.
func (s SuiteConfig) SectionName() string {
	if strings.TrimSpace(s.Section) != "" {
		return strings.TrimSpace(s.Section)
	}
	return strings.TrimSpace(s.Name)
}

type TransportConfig struct {
	Type             TransportType     `mapstructure:"type"`
	Target           string            `mapstructure:"target"`
	Method           string            `mapstructure:"method"`
	Headers          map[string]string `mapstructure:"headers"`
	Rate             int               `mapstructure:"rate"` // issue-rate cap per second (0 = unlimited)
	HandshakeTimeout time.Duration     `mapstructure:"handshake_timeout"`
	PoolSize         int               `mapstructure:"pool_size"`
	Sim              SimConfig         `mapstructure:"sim"`
}

// SimConfig drives the in-process simulated target.
type SimConfig struct {
	Latency    time.Duration `mapstructure:"latency"`
	Jitter     time.Duration `mapstructure:"jitter"`
	ErrorRate  float64       `mapstructure:"error_rate"`
	BytesPerMs int           `mapstructure:"bytes_per_ms"` // payload cost; 0 disables
	Seed       int64         `mapstructure:"seed"`
}

type OutputConfig struct {
	Format     string `mapstructure:"format"` // text, json, yaml
	ReportFile string `mapstructure:"report_file"`
	Dashboard  bool   `mapstructure:"dashboard"`
	Quiet      bool   `mapstructure:"quiet"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either directly
// or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type MetricsConfig struct {
	Listen    string `mapstructure:"listen"`
	Namespace string `mapstructure:"namespace"`
}

// ErrSectionNotFound is wrapped by ConfigurationError when a named section is
// absent from the configuration source.
var ErrSectionNotFound = errors.New("config section not found")

// ConfigurationError is fatal: the run cannot start without the section.
type ConfigurationError struct {
	Section string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("read configuration failed for section [%s]: %v", e.Section, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Settle < 0 {
		issues = append(issues, "settle must be >= 0")
	}

	issues = append(issues, validateCaseOptions("defaults", c.Defaults)...)
	for name, section := range c.Sections {
		issues = append(issues, validateCaseOptions("sections."+name, section)...)
	}

	seen := map[string]int{}
	for idx, s := range c.Suites {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("suites[%d]: name is required", idx))
			continue
		}
		if prev, ok := seen[strings.ToLower(name)]; ok {
			issues = append(issues, fmt.Sprintf("suites[%d]: duplicate name also defined at index %d", idx, prev))
		} else {
			seen[strings.ToLower(name)] = idx
		}
	}

	issues = append(issues, validateTransport(c.Transport)...)

	switch strings.ToLower(c.Output.Format) {
	case "", "text", "json", "yaml":
	default:
		issues = append(issues, fmt.Sprintf("output: format must be 'text', 'json' or 'yaml', got %q", c.Output.Format))
	}
	if c.Output.Dashboard && strings.EqualFold(c.Output.Format, "json") {
		issues = append(issues, "dashboard and json output are mutually exclusive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log: format must be 'console' or 'json', got %q", c.Log.Format))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0.0 and 1.0")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// HighConcurrency is the window size above which Warnings flags a section.
const HighConcurrency = 1000

// Warnings lists settings that are valid but worth a second look before
// load is sent to a real target.
func (c Config) Warnings() []string {
	var warnings []string
	check := func(label string, opts CaseOptions) {
		for _, cc := range opts.Concurrency {
			if cc > HighConcurrency {
				warnings = append(warnings, fmt.Sprintf("%s: high concurrency configured (%d in flight), ensure you have authorization to test the target system", label, cc))
				return
			}
		}
	}
	check("defaults", c.Defaults)
	names := make([]string, 0, len(c.Sections))
	for name := range c.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check("sections."+name, c.Sections[name])
	}
	return warnings
}

func validateCaseOptions(label string, opts CaseOptions) []string {
	var issues []string
	for i, cc := range opts.Concurrency {
		if cc < 0 {
			issues = append(issues, fmt.Sprintf("%s.concurrency[%d]: must be >= 0", label, i))
		}
	}
	for i, ms := range opts.TimeoutsMs {
		if ms <= 0 {
			issues = append(issues, fmt.Sprintf("%s.timeouts_ms[%d]: must be > 0", label, i))
		}
	}
	for i, b := range opts.PayloadBytes {
		if b < 0 {
			issues = append(issues, fmt.Sprintf("%s.payload_bytes[%d]: must be >= 0", label, i))
		}
	}
	if opts.Duration < 0 {
		issues = append(issues, fmt.Sprintf("%s.duration: must be >= 0", label))
	}
	return issues
}

func validateTransport(t TransportConfig) []string {
	var issues []string
	switch t.Type {
	case "", TransportSim:
		if t.Sim.ErrorRate < 0 || t.Sim.ErrorRate > 1 {
			issues = append(issues, "transport.sim: error_rate must be between 0.0 and 1.0")
		}
		if t.Sim.Latency < 0 || t.Sim.Jitter < 0 {
			issues = append(issues, "transport.sim: latency and jitter must be >= 0")
		}
	case TransportHTTP, TransportWebSocket:
		if strings.TrimSpace(t.Target) == "" {
			issues = append(issues, fmt.Sprintf("transport: target is required for %s (use --help for usage information)", t.Type))
		}
	default:
		issues = append(issues, fmt.Sprintf("transport: type must be 'sim', 'http' or 'websocket', got %q", t.Type))
	}
	if t.Rate < 0 {
		issues = append(issues, "transport: rate must be >= 0")
	}
	if t.PoolSize < 0 {
		issues = append(issues, "transport: pool_size must be >= 0")
	}
	return issues
}
