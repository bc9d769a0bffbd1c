package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Name:       "casebench",
		Settle:     DefaultSettle,
		Sections:   map[string]CaseOptions{},
		ConfigFile: configPath,
		Transport: TransportConfig{
			Type:    TransportSim,
			Method:  http.MethodPost,
			Headers: map[string]string{},
		},
		Output:  OutputConfig{Format: "text"},
		Log:     LogConfig{Level: "info", Format: "console"},
		Tracing: TracingConfig{Protocol: "grpc", SampleRate: 1.0},
		Metrics: MetricsConfig{Namespace: "casebench"},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Transport.Method = strings.ToUpper(cfg.Transport.Method)
	cfg.Transport.Target = strings.TrimSpace(cfg.Transport.Target)
	if cfg.Transport.Headers == nil {
		cfg.Transport.Headers = map[string]string{}
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("name: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			cfg.Name = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "settle"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		cfg.Settle = dur
	}

	if raw, ok := lookupSetting(settings, "defaults", "default"); ok {
		opts, err := parseCaseOptions(raw)
		if err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
		cfg.Defaults = opts
	}

	if raw, ok := lookupSetting(settings, "sections"); ok {
		sections, err := parseSections(raw)
		if err != nil {
			return fmt.Errorf("sections: %w", err)
		}
		cfg.Sections = sections
	}

	if raw, ok := lookupSetting(settings, "suites"); ok {
		suites, err := parseSuites(raw)
		if err != nil {
			return fmt.Errorf("suites: %w", err)
		}
		cfg.Suites = suites
	}

	if raw, ok := lookupSetting(settings, "transport"); ok {
		if err := applyTransportSettings(&cfg.Transport, raw); err != nil {
			return fmt.Errorf("transport: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		if err := applyOutputSettings(&cfg.Output, raw); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "log"); ok {
		m, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}
		if v, ok := lookupSetting(m, "level"); ok {
			cfg.Log.Level, _ = asString(v)
		}
		if v, ok := lookupSetting(m, "format"); ok {
			cfg.Log.Format, _ = asString(v)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "metrics"); ok {
		m, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		if v, ok := lookupSetting(m, "listen"); ok {
			cfg.Metrics.Listen, _ = asString(v)
		}
		if v, ok := lookupSetting(m, "namespace"); ok {
			ns, _ := asString(v)
			if ns != "" {
				cfg.Metrics.Namespace = ns
			}
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = vals
	}

	return nil
}

// parseCaseOptions reads one section. Absent keys stay empty so that the
// section inherits them from the defaults at resolve time.
func parseCaseOptions(value interface{}) (CaseOptions, error) {
	var opts CaseOptions
	if value == nil {
		return opts, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return opts, err
	}

	if raw, ok := lookupSetting(settings, "concurrency", "perf_test_concurrency"); ok {
		vals, err := asIntSlice(raw)
		if err != nil {
			return opts, fmt.Errorf("concurrency: %w", err)
		}
		opts.Concurrency = vals
	}
	if raw, ok := lookupSetting(settings, "timeouts_ms", "timeouts", "perf_test_timeouts_ms"); ok {
		vals, err := asIntSlice(raw)
		if err != nil {
			return opts, fmt.Errorf("timeouts_ms: %w", err)
		}
		opts.TimeoutsMs = vals
	}
	if raw, ok := lookupSetting(settings, "payload_bytes", "payloads", "perf_test_payload_bytes"); ok {
		vals, err := asIntSlice(raw)
		if err != nil {
			return opts, fmt.Errorf("payload_bytes: %w", err)
		}
		opts.PayloadBytes = vals
	}
	if raw, ok := lookupSetting(settings, "duration", "seconds", "perf_test_seconds"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return opts, fmt.Errorf("duration: %w", err)
		}
		opts.Duration = dur
	}
	return opts, nil
}

func parseSections(value interface{}) (map[string]CaseOptions, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return nil, err
	}
	sections := make(map[string]CaseOptions, len(settings))
	for name, raw := range settings {
		opts, err := parseCaseOptions(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sections[strings.ToLower(name)] = opts
	}
	return sections, nil
}

func parseSuites(value interface{}) ([]SuiteConfig, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	suites := make([]SuiteConfig, 0, len(items))
	for idx, item := range items {
		if name, ok := item.(string); ok {
			suites = append(suites, SuiteConfig{Name: strings.TrimSpace(name)})
			continue
		}
		settings, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("suites[%d]: %w", idx, err)
		}
		var s SuiteConfig
		if raw, ok := lookupSetting(settings, "name"); ok {
			s.Name, _ = asString(raw)
		}
		if raw, ok := lookupSetting(settings, "section", "config_section"); ok {
			s.Section, _ = asString(raw)
		}
		suites = append(suites, s)
	}
	return suites, nil
}

func applyTransportSettings(t *TransportConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, _ := asString(raw)
		t.Type = TransportType(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "target", "url"); ok {
		t.Target, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "method"); ok {
		val, _ := asString(raw)
		if val != "" {
			t.Method = val
		}
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if t.Headers == nil {
			t.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			t.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}
	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		t.Rate = val
	}
	if raw, ok := lookupSetting(settings, "handshake_timeout", "handshaketimeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("handshake_timeout: %w", err)
		}
		t.HandshakeTimeout = dur
	}
	if raw, ok := lookupSetting(settings, "pool_size", "poolsize"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("pool_size: %w", err)
		}
		t.PoolSize = val
	}
	if raw, ok := lookupSetting(settings, "sim"); ok {
		sim, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("sim: %w", err)
		}
		if v, ok := lookupSetting(sim, "latency"); ok {
			if t.Sim.Latency, err = asDuration(v); err != nil {
				return fmt.Errorf("sim.latency: %w", err)
			}
		}
		if v, ok := lookupSetting(sim, "jitter"); ok {
			if t.Sim.Jitter, err = asDuration(v); err != nil {
				return fmt.Errorf("sim.jitter: %w", err)
			}
		}
		if v, ok := lookupSetting(sim, "error_rate", "errorrate"); ok {
			if t.Sim.ErrorRate, err = asFloat64(v); err != nil {
				return fmt.Errorf("sim.error_rate: %w", err)
			}
		}
		if v, ok := lookupSetting(sim, "bytes_per_ms", "bytesperms"); ok {
			if t.Sim.BytesPerMs, err = asInt(v); err != nil {
				return fmt.Errorf("sim.bytes_per_ms: %w", err)
			}
		}
		if v, ok := lookupSetting(sim, "seed"); ok {
			seed, err := asInt(v)
			if err != nil {
				return fmt.Errorf("sim.seed: %w", err)
			}
			t.Sim.Seed = int64(seed)
		}
	}
	return nil
}

func applyOutputSettings(o *OutputConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "format"); ok {
		val, _ := asString(raw)
		o.Format = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "report_file", "reportfile"); ok {
		o.ReportFile, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		if o.Dashboard, err = asBool(raw); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "quiet"); ok {
		if o.Quiet, err = asBool(raw); err != nil {
			return fmt.Errorf("quiet: %w", err)
		}
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		t.Endpoint, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		t.Protocol, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if t.Insecure, err = asBool(raw); err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename"); ok {
		t.ServiceName, _ = asString(raw)
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate"); ok {
		if t.SampleRate, err = asFloat64(raw); err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}
