package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "casebench",
		Short:         "Benchmark an endpoint across a matrix of concurrency, timeout and payload cases",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("name", "", "Run name used in reports")
	flags.StringSlice("suite", nil, "Only run the named suites (repeatable)")

	// Case matrix flags (fill the defaults section)
	flags.IntSliceP("concurrency", "c", nil, "Concurrency levels; 0 runs the doubling stress mode (default 1,10,100,1000)")
	flags.IntSlice("timeouts", nil, "Per-request timeouts in milliseconds (default 10000)")
	flags.IntSlice("payloads", nil, "Payload sizes in bytes (default 1024,65536,524288,1048576)")
	flags.DurationP("duration", "d", 0, "Duration of each case (default 10s)")
	flags.Duration("settle", DefaultSettle, "Pause before each case starts")

	// Transport flags
	flags.String("transport", string(TransportSim), "Transport: 'sim', 'http' or 'websocket'")
	flags.String("target", "", "Target URL for the http and websocket transports")
	flags.String("method", http.MethodPost, "HTTP method for the http transport")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.IntP("rate", "r", 0, "Cap on requests issued per second (0 means unlimited)")
	flags.Int("pool-size", 0, "WebSocket connections kept per target (0 = default)")
	flags.Duration("sim-latency", 0, "Base latency of the simulated target")
	flags.Duration("sim-jitter", 0, "Random latency added by the simulated target")
	flags.Float64("sim-error-rate", 0, "Fraction of simulated requests that fail")
	flags.Int64("sim-seed", 0, "Seed for the simulated target's random source")

	// Output flags
	flags.String("format", "text", "Report format: 'text', 'json' or 'yaml'")
	flags.String("report-file", "", "Write the run report to this file (.txt, .json, .yaml or .html)")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.BoolP("quiet", "q", false, "Suppress the live progress line")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log format: 'console' or 'json'")

	// Observability flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for case and request spans")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sample rate between 0.0 and 1.0")
	flags.String("metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Per-case thresholds (repeatable, e.g., 'latency:avg < 50')")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\nUsage: %s\n\nFlags:\n", cmd.Short, cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("name") {
		val, err := fs.GetString("name")
		if err != nil {
			return err
		}
		cfg.Name = strings.TrimSpace(val)
	}
	if fs.Changed("suite") {
		val, err := fs.GetStringSlice("suite")
		if err != nil {
			return err
		}
		cfg.Suites = filterSuites(cfg.Suites, val)
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetIntSlice("concurrency")
		if err != nil {
			return err
		}
		cfg.Defaults.Concurrency = val
	}
	if fs.Changed("timeouts") {
		val, err := fs.GetIntSlice("timeouts")
		if err != nil {
			return err
		}
		cfg.Defaults.TimeoutsMs = val
	}
	if fs.Changed("payloads") {
		val, err := fs.GetIntSlice("payloads")
		if err != nil {
			return err
		}
		cfg.Defaults.PayloadBytes = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Defaults.Duration = val
	}
	if fs.Changed("settle") {
		val, err := fs.GetDuration("settle")
		if err != nil {
			return err
		}
		cfg.Settle = val
	}
	if fs.Changed("transport") {
		val, err := fs.GetString("transport")
		if err != nil {
			return err
		}
		cfg.Transport.Type = TransportType(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.Transport.Target = strings.TrimSpace(val)
	}
	if fs.Changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Transport.Method = val
	}
	if fs.Changed("header") {
		vals, err := fs.GetStringSlice("header")
		if err != nil {
			return err
		}
		if cfg.Transport.Headers == nil {
			cfg.Transport.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Transport.Headers[key] = strings.TrimSpace(parts[1])
		}
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Transport.Rate = val
	}
	if fs.Changed("pool-size") {
		val, err := fs.GetInt("pool-size")
		if err != nil {
			return err
		}
		cfg.Transport.PoolSize = val
	}
	if fs.Changed("sim-latency") {
		val, err := fs.GetDuration("sim-latency")
		if err != nil {
			return err
		}
		cfg.Transport.Sim.Latency = val
	}
	if fs.Changed("sim-jitter") {
		val, err := fs.GetDuration("sim-jitter")
		if err != nil {
			return err
		}
		cfg.Transport.Sim.Jitter = val
	}
	if fs.Changed("sim-error-rate") {
		val, err := fs.GetFloat64("sim-error-rate")
		if err != nil {
			return err
		}
		cfg.Transport.Sim.ErrorRate = val
	}
	if fs.Changed("sim-seed") {
		val, err := fs.GetInt64("sim-seed")
		if err != nil {
			return err
		}
		cfg.Transport.Sim.Seed = val
	}
	if fs.Changed("format") {
		val, err := fs.GetString("format")
		if err != nil {
			return err
		}
		cfg.Output.Format = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("report-file") {
		val, err := fs.GetString("report-file")
		if err != nil {
			return err
		}
		cfg.Output.ReportFile = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Output.Dashboard = val
	}
	if fs.Changed("quiet") {
		val, err := fs.GetBool("quiet")
		if err != nil {
			return err
		}
		cfg.Output.Quiet = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.Log.Level = val
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.Log.Format = val
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("metrics-listen") {
		val, err := fs.GetString("metrics-listen")
		if err != nil {
			return err
		}
		cfg.Metrics.Listen = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	return nil
}

// filterSuites keeps the configured suites whose names appear in only, in
// their configured order. Names with no configured suite are added as suites
// resolving a section of the same name.
func filterSuites(suites []SuiteConfig, only []string) []SuiteConfig {
	if len(only) == 0 {
		return suites
	}
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}
	var out []SuiteConfig
	for _, s := range suites {
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if wanted[key] {
			out = append(out, s)
			delete(wanted, key)
		}
	}
	for _, name := range only {
		key := strings.ToLower(strings.TrimSpace(name))
		if wanted[key] {
			out = append(out, SuiteConfig{Name: strings.TrimSpace(name)})
			delete(wanted, key)
		}
	}
	return out
}
