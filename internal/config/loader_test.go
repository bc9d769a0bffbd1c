package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsIntSlice(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  []int
	}{
		{"nil", nil, nil},
		{"ints", []int{1, 2}, []int{1, 2}},
		{"interfaces", []interface{}{1, "10", float64(100)}, []int{1, 10, 100}},
		{"csv string", "1, 10,100", []int{1, 10, 100}},
		{"bracketed string", "[5000]", []int{5000}},
		{"empty string", "", []int{}},
		{"scalar", 1024, []int{1024}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asIntSlice(tt.input)
			if err != nil {
				t.Fatalf("asIntSlice(%v) error = %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("asIntSlice(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("asIntSlice(%v)[%d] = %d, want %d", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := asIntSlice("1,x"); err == nil {
		t.Error("asIntSlice(\"1,x\") error = nil, want parse error")
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := &Config{Sections: map[string]CaseOptions{}}
	settings := map[string]interface{}{
		"name":   "legacy",
		"settle": "1s",
		"default": map[string]interface{}{
			"perf_test_concurrency":   []interface{}{0, 4},
			"perf_test_timeouts_ms":   "100,200",
			"perf_test_payload_bytes": []interface{}{64},
			"perf_test_seconds":       2,
		},
		"suites": []interface{}{
			"ping",
			map[string]interface{}{"name": "echo", "config_section": "task.echo"},
		},
		"sections": map[string]interface{}{
			"ping":      map[string]interface{}{},
			"task.echo": map[string]interface{}{"payloads": []interface{}{1}},
		},
		"transport": map[string]interface{}{
			"type": "sim",
			"sim": map[string]interface{}{
				"latency":    "2ms",
				"error_rate": 0.25,
				"seed":       7,
			},
		},
		"tracing": map[string]interface{}{
			"endpoint":  "localhost:4317",
			"propagate": false,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Name != "legacy" {
		t.Errorf("Name = %q, want legacy", cfg.Name)
	}
	if cfg.Settle != time.Second {
		t.Errorf("Settle = %v, want 1s", cfg.Settle)
	}
	if len(cfg.Defaults.Concurrency) != 2 || cfg.Defaults.Concurrency[0] != 0 {
		t.Errorf("Defaults.Concurrency = %v, want [0 4]", cfg.Defaults.Concurrency)
	}
	if len(cfg.Defaults.TimeoutsMs) != 2 || cfg.Defaults.TimeoutsMs[1] != 200 {
		t.Errorf("Defaults.TimeoutsMs = %v, want [100 200]", cfg.Defaults.TimeoutsMs)
	}
	if cfg.Defaults.Duration != 2*time.Second {
		t.Errorf("Defaults.Duration = %v, want 2s", cfg.Defaults.Duration)
	}
	if len(cfg.Suites) != 2 || cfg.Suites[1].SectionName() != "task.echo" {
		t.Errorf("Suites = %+v, want ping and echo->task.echo", cfg.Suites)
	}
	if cfg.Transport.Sim.Latency != 2*time.Millisecond {
		t.Errorf("Sim.Latency = %v, want 2ms", cfg.Transport.Sim.Latency)
	}
	if cfg.Transport.Sim.ErrorRate != 0.25 {
		t.Errorf("Sim.ErrorRate = %v, want 0.25", cfg.Transport.Sim.ErrorRate)
	}
	if cfg.Transport.Sim.Seed != 7 {
		t.Errorf("Sim.Seed = %d, want 7", cfg.Transport.Sim.Seed)
	}
	if cfg.Tracing.ShouldPropagate() {
		t.Errorf("Tracing.ShouldPropagate() = true, want explicit false")
	}

	suites, err := cfg.ResolveSuites()
	if err != nil {
		t.Fatalf("ResolveSuites() error = %v", err)
	}
	if got := suites[1].Options.PayloadBytes; len(got) != 1 || got[0] != 1 {
		t.Errorf("echo payloads = %v, want [1]", got)
	}
	if got := suites[0].Options.PayloadBytes; len(got) != 1 || got[0] != 64 {
		t.Errorf("ping payloads = %v, want inherited [64]", got)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := &Config{
		Transport: TransportConfig{Method: "POST"},
		Suites:    []SuiteConfig{{Name: "a"}, {Name: "b"}},
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--concurrency=0,5",
		"--timeouts=1000",
		"--payloads=16,32",
		"--duration=3s",
		"--method=put",
		"--header=X-Test=123",
		"--suite=b",
		"--transport=HTTP",
		"--target= http://localhost:8080 ",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if len(cfg.Defaults.Concurrency) != 2 || cfg.Defaults.Concurrency[1] != 5 {
		t.Errorf("Defaults.Concurrency = %v, want [0 5]", cfg.Defaults.Concurrency)
	}
	if len(cfg.Defaults.TimeoutsMs) != 1 || cfg.Defaults.TimeoutsMs[0] != 1000 {
		t.Errorf("Defaults.TimeoutsMs = %v, want [1000]", cfg.Defaults.TimeoutsMs)
	}
	if cfg.Defaults.Duration != 3*time.Second {
		t.Errorf("Defaults.Duration = %v, want 3s", cfg.Defaults.Duration)
	}
	if cfg.Transport.Method != "put" {
		t.Errorf("Method = %q, want put (upper-cased later by Load)", cfg.Transport.Method)
	}
	if cfg.Transport.Headers["X-Test"] != "123" {
		t.Errorf("Headers[X-Test] = %q, want 123", cfg.Transport.Headers["X-Test"])
	}
	if cfg.Transport.Type != TransportHTTP {
		t.Errorf("Transport.Type = %q, want http", cfg.Transport.Type)
	}
	if cfg.Transport.Target != "http://localhost:8080" {
		t.Errorf("Transport.Target = %q, want trimmed URL", cfg.Transport.Target)
	}
	if len(cfg.Suites) != 1 || cfg.Suites[0].Name != "b" {
		t.Errorf("Suites = %+v, want only b", cfg.Suites)
	}
}

func TestFilterSuitesAddsUnknownNames(t *testing.T) {
	got := filterSuites([]SuiteConfig{{Name: "a", Section: "sa"}}, []string{"x", "A"})
	if len(got) != 2 {
		t.Fatalf("filterSuites() = %+v, want 2 suites", got)
	}
	if got[0].Name != "a" || got[0].Section != "sa" {
		t.Errorf("got[0] = %+v, want configured suite a", got[0])
	}
	if got[1].Name != "x" || got[1].SectionName() != "x" {
		t.Errorf("got[1] = %+v, want ad-hoc suite x", got[1])
	}
}
