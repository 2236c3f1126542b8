package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the plugin engine.
type Metrics struct {
	Registry *prometheus.Registry

	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ExecutionErrors   *prometheus.CounterVec
	ActiveExecutions  prometheus.Gauge
	PolicyViolations  *prometheus.CounterVec
	QueueRejections   *prometheus.CounterVec
	RequestsInFlight  prometheus.Gauge
	ParamsSizeBytes   prometheus.Histogram
	OutputSizeBytes   prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugin_engine",
				Name:      "executions_total",
				Help:      "Total number of plugin executions by plugin, mode and status.",
			},
			[]string{"plugin", "mode", "status"},
		),

		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "plugin_engine",
				Name:      "execution_duration_seconds",
				Help:      "Duration of plugin executions in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"plugin", "mode"},
		),

		ExecutionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugin_engine",
				Name:      "execution_errors_total",
				Help:      "Total plugin execution errors by type.",
			},
			[]string{"type"},
		),

		ActiveExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "plugin_engine",
				Name:      "active_executions",
				Help:      "Number of currently running plugin executions.",
			},
		),

		PolicyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugin_engine",
				Name:      "policy_violations_total",
				Help:      "Total security policy violations by type.",
			},
			[]string{"type"},
		),

		QueueRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugin_engine",
				Name:      "queue_rejections_total",
				Help:      "Executions rejected because a dispatch backend was at capacity.",
			},
			[]string{"backend"},
		),

		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "plugin_engine",
				Subsystem: "api",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),

		ParamsSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "plugin_engine",
				Name:      "params_size_bytes",
				Help:      "Serialized size of submitted parameters in bytes.",
				Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
			},
		),

		OutputSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "plugin_engine",
				Name:      "output_size_bytes",
				Help:      "Size of plugin output in bytes.",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
	}

	// Register all collectors
	reg.MustRegister(
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.ExecutionErrors,
		m.ActiveExecutions,
		m.PolicyViolations,
		m.QueueRejections,
		m.RequestsInFlight,
		m.ParamsSizeBytes,
		m.OutputSizeBytes,
	)

	return m
}

// RecordExecution records metrics for a settled execution.
func (m *Metrics) RecordExecution(plugin, mode, status string, durationSec float64) {
	m.ExecutionsTotal.WithLabelValues(plugin, mode, status).Inc()
	m.ExecutionDuration.WithLabelValues(plugin, mode).Observe(durationSec)
}

// RecordError records an execution error by type.
func (m *Metrics) RecordError(errType string) {
	m.ExecutionErrors.WithLabelValues(errType).Inc()
}

// RecordViolation records a security policy violation.
func (m *Metrics) RecordViolation(violationType string) {
	m.PolicyViolations.WithLabelValues(violationType).Inc()
}
