package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/casebench/internal/config"
)

func TestLoadNoArgsRequestsHelp(t *testing.T) {
	loader := config.NewLoader()

	_, err := loader.Load([]string{})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load() error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadFlagDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{"--duration", "1s"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport.Type != config.TransportSim {
		t.Errorf("Transport.Type = %q, want sim", cfg.Transport.Type)
	}
	if cfg.Transport.Method != "POST" {
		t.Errorf("Transport.Method = %q, want POST", cfg.Transport.Method)
	}
	if cfg.Settle != config.DefaultSettle {
		t.Errorf("Settle = %s, want %s", cfg.Settle, config.DefaultSettle)
	}
	if cfg.Defaults.Duration != time.Second {
		t.Errorf("Defaults.Duration = %s, want 1s", cfg.Defaults.Duration)
	}
	if len(cfg.Defaults.Concurrency) != 0 {
		t.Errorf("Defaults.Concurrency = %v, want empty before resolution", cfg.Defaults.Concurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	content := strings.Join([]string{
		"name: echo-bench",
		"settle: 500ms",
		"defaults:",
		"  concurrency: [1, 10]",
		"  timeouts_ms: [5000, 10000]",
		"  duration: 3",
		"suites:",
		"  - name: echo",
		"  - name: big",
		"    section: big_payloads",
		"sections:",
		"  echo:",
		"    payload_bytes: [100]",
		"  big_payloads:",
		"    payload_bytes: [1048576]",
		"    concurrency: []",
		"transport:",
		"  type: http",
		"  target: http://localhost:8080/echo",
		"  headers:",
		"    x-env: staging",
		"  rate: 50",
		"thresholds:",
		"  - 'errors:count == 0'",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Name != "echo-bench" {
		t.Errorf("Name = %q, want echo-bench", cfg.Name)
	}
	if cfg.Settle != 500*time.Millisecond {
		t.Errorf("Settle = %s, want 500ms", cfg.Settle)
	}
	if cfg.Defaults.Duration != 3*time.Second {
		t.Errorf("Defaults.Duration = %s, want 3s", cfg.Defaults.Duration)
	}
	if cfg.Transport.Type != config.TransportHTTP {
		t.Errorf("Transport.Type = %q, want http", cfg.Transport.Type)
	}
	if cfg.Transport.Headers["X-Env"] != "staging" {
		t.Errorf("Headers[X-Env] = %q, want staging", cfg.Transport.Headers["X-Env"])
	}
	if cfg.Transport.Rate != 50 {
		t.Errorf("Transport.Rate = %d, want 50", cfg.Transport.Rate)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v, want 1 entry", cfg.Thresholds)
	}

	suites, err := cfg.ResolveSuites()
	if err != nil {
		t.Fatalf("ResolveSuites() error = %v", err)
	}
	if len(suites) != 2 {
		t.Fatalf("len(suites) = %d, want 2", len(suites))
	}

	echo := suites[0]
	if echo.Name != "echo" || echo.Section != "echo" {
		t.Errorf("suite[0] = %+v, want echo/echo", echo)
	}
	if got := echo.Options.PayloadBytes; len(got) != 1 || got[0] != 100 {
		t.Errorf("echo payloads = %v, want [100]", got)
	}
	if got := echo.Options.Concurrency; len(got) != 2 || got[1] != 10 {
		t.Errorf("echo concurrency = %v, want inherited [1 10]", got)
	}
	if got := echo.Options.TimeoutsMs; len(got) != 2 || got[0] != 5000 {
		t.Errorf("echo timeouts = %v, want inherited [5000 10000]", got)
	}

	big := suites[1]
	if big.Section != "big_payloads" {
		t.Errorf("suite[1].Section = %q, want big_payloads", big.Section)
	}
	if got := big.Options.Concurrency; len(got) != 2 {
		t.Errorf("big concurrency = %v, want empty list to inherit [1 10]", got)
	}
	if big.Options.Duration != 3*time.Second {
		t.Errorf("big duration = %s, want 3s", big.Options.Duration)
	}
}

func TestResolveUnknownSectionIsConfigurationError(t *testing.T) {
	cfg := &config.Config{
		Suites:   []config.SuiteConfig{{Name: "missing"}},
		Sections: map[string]config.CaseOptions{},
	}

	_, err := cfg.ResolveSuites()
	if err == nil {
		t.Fatal("ResolveSuites() error = nil, want configuration error")
	}
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *ConfigurationError", err)
	}
	if cfgErr.Section != "missing" {
		t.Errorf("Section = %q, want missing", cfgErr.Section)
	}
	if !errors.Is(err, config.ErrSectionNotFound) {
		t.Errorf("errors.Is(err, ErrSectionNotFound) = false")
	}
}

func TestResolveFallsBackToBuiltins(t *testing.T) {
	cfg := &config.Config{}

	suites, err := cfg.ResolveSuites()
	if err != nil {
		t.Fatalf("ResolveSuites() error = %v", err)
	}
	if len(suites) != 1 || suites[0].Name != config.DefaultSuiteName {
		t.Fatalf("suites = %+v, want single default suite", suites)
	}

	opts := suites[0].Options
	wantCC := []int{1, 10, 100, 1000}
	wantPayloads := []int{1024, 65536, 524288, 1048576}
	if !equalInts(opts.Concurrency, wantCC) {
		t.Errorf("Concurrency = %v, want %v", opts.Concurrency, wantCC)
	}
	if !equalInts(opts.TimeoutsMs, []int{10000}) {
		t.Errorf("TimeoutsMs = %v, want [10000]", opts.TimeoutsMs)
	}
	if !equalInts(opts.PayloadBytes, wantPayloads) {
		t.Errorf("PayloadBytes = %v, want %v", opts.PayloadBytes, wantPayloads)
	}
	if opts.Duration != config.DefaultCaseDuration {
		t.Errorf("Duration = %s, want %s", opts.Duration, config.DefaultCaseDuration)
	}
}

func TestBuiltinCaseOptionsAreCopies(t *testing.T) {
	a := config.BuiltinCaseOptions()
	a.Concurrency[0] = 99

	b := config.BuiltinCaseOptions()
	if b.Concurrency[0] != 1 {
		t.Errorf("BuiltinCaseOptions shares storage: got %d", b.Concurrency[0])
	}
}

func TestValidateCollectsIssues(t *testing.T) {
	cfg := config.Config{
		Settle: -time.Second,
		Defaults: config.CaseOptions{
			Concurrency: []int{-1},
			TimeoutsMs:  []int{0},
		},
		Suites:    []config.SuiteConfig{{Name: "a"}, {Name: "A"}, {}},
		Transport: config.TransportConfig{Type: config.TransportHTTP},
		Output:    config.OutputConfig{Format: "xml"},
	}

	err := cfg.Validate()
	var vErr config.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}

	want := []string{
		"settle must be >= 0",
		"defaults.concurrency[0]",
		"defaults.timeouts_ms[0]",
		"suites[1]: duplicate name",
		"suites[2]: name is required",
		"target is required",
		"format must be",
	}
	joined := strings.Join(vErr.Issues(), "\n")
	for _, w := range want {
		if !strings.Contains(joined, w) {
			t.Errorf("issues missing %q:\n%s", w, joined)
		}
	}
}

func TestValidateTransportTypes(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TransportConfig
		wantErr bool
	}{
		{"sim default", config.TransportConfig{}, false},
		{"sim bad error rate", config.TransportConfig{Type: config.TransportSim, Sim: config.SimConfig{ErrorRate: 1.5}}, true},
		{"http with target", config.TransportConfig{Type: config.TransportHTTP, Target: "http://x"}, false},
		{"websocket missing target", config.TransportConfig{Type: config.TransportWebSocket}, true},
		{"unknown", config.TransportConfig{Type: "carrier-pigeon"}, true},
		{"negative rate", config.TransportConfig{Rate: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.Config{Transport: tt.cfg}.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWarningsFlagHighConcurrency(t *testing.T) {
	cfg := config.Config{
		Defaults: config.CaseOptions{Concurrency: []int{1, 10}},
		Sections: map[string]config.CaseOptions{
			"stress": {Concurrency: []int{500, 5000, 8000}},
			"smoke":  {Concurrency: []int{1}},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	warnings := cfg.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("Warnings() = %v, want one warning", warnings)
	}
	if !strings.HasPrefix(warnings[0], "sections.stress:") || !strings.Contains(warnings[0], "5000") {
		t.Errorf("Warnings()[0] = %q", warnings[0])
	}

	cfg.Defaults.Concurrency = []int{config.HighConcurrency + 1}
	if got := len(cfg.Warnings()); got != 2 {
		t.Errorf("len(Warnings()) = %d, want 2", got)
	}
}
