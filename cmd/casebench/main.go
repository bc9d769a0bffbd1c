package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/dashboard"
	"github.com/torosent/casebench/internal/exporter"
	"github.com/torosent/casebench/internal/output"
	"github.com/torosent/casebench/internal/runner"
	"github.com/torosent/casebench/internal/threshold"
	"github.com/torosent/casebench/internal/tracing"
	"github.com/torosent/casebench/internal/transport"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

// Exit codes.
const (
	exitFailure     = 1
	exitThresholds  = 2
	exitInvariant   = 3
	exitInterrupted = 130
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errThresholdsFailed):
		return exitThresholds
	case errors.Is(err, runner.ErrInvariantViolation):
		return exitInvariant
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFailure
	}
}

// snapshotFunc adapts a function to the Snapshotter interfaces of the
// progress line and the dashboard.
type snapshotFunc func() runner.Progress

func (f snapshotFunc) Snapshot() runner.Progress { return f() }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	evaluator := threshold.NewEvaluator(thresholds)

	resolved, err := cfg.ResolveSuites()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runID := ulid.Make().String()
	provider, err := tracing.Init(ctx, tracing.Options{
		Config: cfg.Tracing,
		Run: tracing.Run{
			Name:      cfg.Name,
			ID:        runID,
			Transport: string(cfg.Transport.Type),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()
	tracer := provider.Tracer()
	runCtx, runSpan := provider.StartRun(ctx)
	caseSpans := provider.CaseSpans(runCtx)

	tr, err := transport.New(cfg.Transport, transport.Options{
		Tracer:         tracer,
		Spans:          caseSpans,
		Propagate:      provider.ShouldPropagate(),
		MaxConcurrency: maxConcurrency(resolved),
		Logger:         logger,
	})
	if err != nil {
		tracing.EndSpan(runSpan, err)
		return err
	}
	defer func() {
		if err := tr.Close(); err != nil {
			logger.Warn("transport close failed", zap.Error(err))
		}
	}()

	var issuer runner.Issuer = tr
	if logger.Core().Enabled(zap.DebugLevel) {
		issuer = runner.WithLogging(issuer, &zapFailureLogger{logger: logger})
	}
	suites := runner.NewBuilder().BuildSuites(resolved, issuer)

	// The dashboard owns the terminal; buffer the report until it stops.
	var buffered bytes.Buffer
	reportOut := stdout
	if cfg.Output.Dashboard {
		reportOut = &buffered
	}
	reporter, err := output.NewReporter(cfg.Output.Format, reportOut, evaluator)
	if err != nil {
		tracing.EndSpan(runSpan, err)
		return err
	}

	observers := []runner.Observer{caseSpans}
	if obs, ok := reporter.(runner.Observer); ok {
		observers = append(observers, obs)
	}

	if cfg.Metrics.Listen != "" {
		m := exporter.NewMetrics(cfg.Metrics)
		srv, err := exporter.Serve(cfg.Metrics.Listen, m, logger)
		if err != nil {
			tracing.EndSpan(runSpan, err)
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		observers = append(observers, m)
	}

	var controller *runner.Controller
	source := snapshotFunc(func() runner.Progress { return controller.Snapshot() })

	var dash *dashboard.Dashboard
	if cfg.Output.Dashboard {
		dash, err = dashboard.New(source, dashboard.Settings{
			Name:       cfg.Name,
			Target:     cfg.Transport.Target,
			Transport:  tr.Name(),
			Rate:       cfg.Transport.Rate,
			Suites:     len(suites),
			ConfigFile: cfg.ConfigFile,
		}, cancel)
		if err != nil {
			tracing.EndSpan(runSpan, err)
			return err
		}
		observers = append(observers, dash)
	}

	controller = runner.New(runner.Options{
		Name:     cfg.Name,
		Settle:   cfg.Settle,
		Reporter: reporter,
		Observer: runner.Observers(observers...),
		Logger:   logger,
		NewRunID: func() string { return runID },
	})

	logger.Info("starting run",
		zap.String("name", cfg.Name),
		zap.String("transport", tr.Name()),
		zap.Int("suites", len(suites)),
		zap.Int64("cases", runner.CountCases(suites)),
	)

	if err := controller.Start(runCtx, suites); err != nil {
		if dash != nil {
			dash.Stop()
		}
		tracing.EndSpan(runSpan, err)
		return err
	}

	var progress *output.ProgressReporter
	switch {
	case dash != nil:
		dash.Start()
	case !cfg.Output.Quiet:
		progress = output.NewProgressReporter(source, progressInterval, stderr)
		progress.Start()
	}

	report, runErr := controller.Wait()

	if dash != nil {
		dash.Stop()
		_, _ = io.Copy(stdout, &buffered)
	}
	if progress != nil {
		progress.Stop()
	}

	tracing.EndRun(runSpan, report, runErr)

	if errors.Is(runErr, runner.ErrInvariantViolation) {
		return runErr
	}

	results := evaluator.Evaluate(report)
	if path := cfg.Output.ReportFile; path != "" {
		// Written even when interrupted; ctx may already be done.
		err := output.WriteReportFile(context.WithoutCancel(ctx), path, report, results, output.FileOptions{
			Metadata: output.ReportMetadata{
				TargetURL: cfg.Transport.Target,
				Transport: tr.Name(),
			},
		})
		if err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", path))
	}

	if runErr != nil {
		return runErr
	}
	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	return nil
}

// maxConcurrency returns the largest fixed concurrency of the run, used to
// size connection reuse.
func maxConcurrency(suites []config.ResolvedSuite) int {
	peak := 0
	for _, s := range suites {
		for _, c := range s.Options.Concurrency {
			peak = max(peak, c)
		}
	}
	return peak
}
