// Package metrics provides datastore metrics for observability
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations.
// It implements Recorder so repositories can take either this or NopRecorder.
type DatastoreMetrics struct {
	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec
	dbConnectionsOpen      prometheus.Gauge
	dbConnectionsInUse     prometheus.Gauge

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers datastore metrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmood_db_operations_total",
			Help: "Total number of database operations by operation and status.",
		},
		[]string{"operation", "status"},
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petmood_db_operation_duration_seconds",
			Help:    "Duration of database operations.",
			Buckets: defaultLatencyBuckets,
		},
		[]string{"operation"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petmood_db_operation_errors_total",
			Help: "Total number of database operation errors by operation and error type.",
		},
		[]string{"operation", "error_type"},
	)

	m.dbConnectionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "petmood_db_connections_open",
		Help: "Number of open database connections.",
	})

	m.dbConnectionsInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "petmood_db_connections_in_use",
		Help: "Number of database connections currently in use.",
	})

	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.dbConnectionsOpen,
		m.dbConnectionsInUse,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordOperation implements Recorder.
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	m.dbOperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	m.dbOperationErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// UpdateConnectionMetrics updates the connection pool gauges from sql.DBStats values.
func (m *DatastoreMetrics) UpdateConnectionMetrics(open, inUse int) {
	m.dbConnectionsOpen.Set(float64(open))
	m.dbConnectionsInUse.Set(float64(inUse))
}

var _ Recorder = (*DatastoreMetrics)(nil)
