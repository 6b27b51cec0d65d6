package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics covers backend queries.
type DatastoreMetrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewDatastoreMetrics creates and registers the backend query metrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "datastore_query_seconds",
			Help:      "Backend query latency by backend and query",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"backend", "query"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "datastore_query_errors_total",
			Help:      "Failed backend queries by backend and query",
		}, []string{"backend", "query"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// RecordQuery records the outcome of one backend query.
func (m *DatastoreMetrics) RecordQuery(backend, query string, elapsed time.Duration, err error) {
	m.QueryDuration.WithLabelValues(backend, query).Observe(elapsed.Seconds())
	if err != nil {
		m.QueryErrors.WithLabelValues(backend, query).Inc()
	}
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.QueryDuration.Collect(ch)
	m.QueryErrors.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.QueryDuration.Describe(ch)
	m.QueryErrors.Describe(ch)
}
