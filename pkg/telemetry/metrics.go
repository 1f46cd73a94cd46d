package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the enforcement engine. A nil
// *Metrics (or a disabled configuration) is a valid no-op collector, so
// components can record unconditionally.
type Metrics struct {
	config MetricsConfig

	decisionsTotal   *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	bypassesTotal    *prometheus.CounterVec
	auditWrites      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of enforcement decisions computed",
			},
			[]string{"operation", "allowed"},
		),
		decisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Duration of enforcement decision computation in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		bypassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bypasses_total",
				Help:      "Total number of enforcement bypasses applied",
			},
			[]string{"bypass"},
		),
		auditWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_writes_total",
				Help:      "Total number of audit entry writes",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.decisionsTotal,
		m.decisionDuration,
		m.bypassesTotal,
		m.auditWrites,
	)

	return m, nil
}

// RecordDecision records one computed decision with its duration.
func (m *Metrics) RecordDecision(operation string, allowed bool, duration time.Duration) {
	if m == nil || m.decisionsTotal == nil {
		return
	}
	allowedLabel := "false"
	if allowed {
		allowedLabel = "true"
	}
	m.decisionsTotal.WithLabelValues(operation, allowedLabel).Inc()
	m.decisionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBypass records one applied bypass by identifier.
func (m *Metrics) RecordBypass(bypass string) {
	if m == nil || m.bypassesTotal == nil {
		return
	}
	m.bypassesTotal.WithLabelValues(bypass).Inc()
}

// RecordAuditWrite records an audit entry write outcome.
func (m *Metrics) RecordAuditWrite(ok bool) {
	if m == nil || m.auditWrites == nil {
		return
	}
	status := "error"
	if ok {
		status = "ok"
	}
	m.auditWrites.WithLabelValues(status).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing the metrics endpoint.
// It returns immediately; the server runs until the process exits.
func (m *Metrics) StartMetricsServer(logger *Logger) error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server error: %v", err)
		}
	}()

	return nil
}
