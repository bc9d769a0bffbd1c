// Package exporter publishes controller activity as Prometheus metrics.
package exporter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

const DefaultNamespace = "casebench"

// Metrics is a runner.Observer backed by its own Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	Issued    *prometheus.CounterVec
	Completed *prometheus.CounterVec
	InFlight  *prometheus.GaugeVec
	Latency   *prometheus.HistogramVec

	CaseConcurrency *prometheus.GaugeVec
	CaseQPS         *prometheus.GaugeVec
	CaseThroughput  *prometheus.GaugeVec
	Finalized       *prometheus.CounterVec
	CurrentCase     prometheus.Gauge
}

// NewMetrics creates and registers every metric under cfg.Namespace.
func NewMetrics(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Issued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "requests_issued_total",
				Help:      "Total number of requests admitted by the controller",
			},
			[]string{"suite"},
		),
		Completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "requests_completed_total",
				Help:      "Total number of completed requests by outcome",
			},
			[]string{"suite", "outcome"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "requests_in_flight",
				Help:      "Number of requests issued and not yet completed",
			},
			[]string{"suite"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "request_duration_seconds",
				Help:      "Request latency in seconds, measured from issue to completion",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"suite", "outcome"},
		),
		CaseConcurrency: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "case_concurrency",
				Help:      "Configured concurrency of each started case (0 is doubling mode)",
			},
			[]string{"suite", "case"},
		),
		CaseQPS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "case_qps",
				Help:      "Successful requests per second of each finalized case",
			},
			[]string{"suite", "case"},
		),
		CaseThroughput: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "case_throughput_mib_per_second",
				Help:      "Payload throughput of each finalized case",
			},
			[]string{"suite", "case"},
		),
		Finalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "cases_finalized_total",
				Help:      "Total number of finalized cases",
			},
			[]string{"suite"},
		),
		CurrentCase: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "current_case",
				Help:      "ID of the case currently running",
			},
		),
	}

	m.registry.MustRegister(
		m.Issued,
		m.Completed,
		m.InFlight,
		m.Latency,
		m.CaseConcurrency,
		m.CaseQPS,
		m.CaseThroughput,
		m.Finalized,
		m.CurrentCase,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) CaseStarted(info runner.CaseInfo) {
	m.CurrentCase.Set(float64(info.ID))
	m.CaseConcurrency.WithLabelValues(info.Suite, caseLabel(info.ID)).Set(float64(info.Concurrency))
}

func (m *Metrics) RequestsIssued(info runner.CaseInfo, n int) {
	m.Issued.WithLabelValues(info.Suite).Add(float64(n))
	m.InFlight.WithLabelValues(info.Suite).Add(float64(n))
}

func (m *Metrics) RequestCompleted(info runner.CaseInfo, latency time.Duration, outcome metrics.Outcome) {
	kind := outcome.Kind.String()
	m.InFlight.WithLabelValues(info.Suite).Dec()
	m.Completed.WithLabelValues(info.Suite, kind).Inc()
	m.Latency.WithLabelValues(info.Suite, kind).Observe(latency.Seconds())
}

func (m *Metrics) CaseFinalized(report runner.CaseReport) {
	label := caseLabel(report.ID)
	m.CaseQPS.WithLabelValues(report.Suite, label).Set(report.Stats.QPS)
	m.CaseThroughput.WithLabelValues(report.Suite, label).Set(report.Stats.ThroughputMiBps)
	m.Finalized.WithLabelValues(report.Suite).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func caseLabel(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Server serves /metrics until Shutdown.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *zap.Logger
}

// Serve listens on addr and serves the metrics handler in the background.
func Serve(addr string, m *Metrics, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
