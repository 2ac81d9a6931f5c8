package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics handles application metrics for the memory/retrieval engine.
// The shape mirrors the CloudWatch recorder this package used to wrap for
// the transport layer, adapted onto a Prometheus registry the engine owns
// directly rather than an AWS client.
type Metrics struct {
	namespace string

	operationDuration *prometheus.HistogramVec
	operationTotal    *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	businessGauge     *prometheus.GaugeVec
}

// NewMetrics creates a new metrics instance registered under namespace.
func NewMetrics(namespace string, registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		namespace: namespace,
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations (ingest, recall, integrate).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		operationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_total",
			Help:      "Count of engine operations by outcome.",
		}, []string{"operation", "status"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Count of errors surfaced by the engine, by taxonomy kind.",
		}, []string{"error_type", "component"}),
		businessGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "business_metric",
			Help:      "Ad-hoc engine business metrics (tenant counts, pattern averages, ...).",
		}, []string{"metric"}),
	}

	if registry != nil {
		registry.MustRegister(m.operationDuration, m.operationTotal, m.errorsTotal, m.businessGauge)
	}

	return m
}

// RecordOperation records the outcome and latency of an engine operation
// such as "ingest", "recall", or "integrate".
func (m *Metrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.operationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
	m.operationTotal.WithLabelValues(operation, status).Inc()
}

// RecordError records an error occurrence by taxonomy kind and the
// component that raised it.
func (m *Metrics) RecordError(errorType, component string) {
	m.errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordBusinessMetric records a point-in-time gauge value, e.g. active
// memory count for a tenant or a pattern's running average outcome.
func (m *Metrics) RecordBusinessMetric(metricName string, value float64) {
	m.businessGauge.WithLabelValues(metricName).Set(value)
}
