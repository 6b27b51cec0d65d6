package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LiveMetrics covers the live update coordinator.
type LiveMetrics struct {
	ReadingsRecorded prometheus.Counter
	GraphRebuilds    prometheus.Counter
	RefreshErrors    *prometheus.CounterVec
	RenderErrors     *prometheus.CounterVec
	QueueDepthGauge  prometheus.Gauge
	Duplicates       prometheus.Counter
}

// NewLiveMetrics creates and registers the coordinator metrics.
func NewLiveMetrics(registry *prometheus.Registry) (*LiveMetrics, error) {
	m := &LiveMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register live metrics: %w", err)
	}
	return m, nil
}

func (m *LiveMetrics) initMetrics() {
	m.ReadingsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "readings_recorded_total",
		Help:      "Total number of readings applied to the ledger from the change stream",
	})
	m.GraphRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "graph_rebuilds_total",
		Help:      "Total number of referral graph rebuilds",
	})
	m.RefreshErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "refresh_errors_total",
		Help:      "Backend queries that failed during a refresh, leaving prior state in place",
	}, []string{"query"})
	m.RenderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "render_errors_total",
		Help:      "Renderer failures by renderer name",
	}, []string{"renderer"})
	m.QueueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "events_queue_depth",
		Help:      "Change events waiting to be applied",
	})
	m.Duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "events_duplicate_total",
		Help:      "Redelivered change events that were suppressed",
	})
}

// ReadingRecorded counts one applied reading.
func (m *LiveMetrics) ReadingRecorded() { m.ReadingsRecorded.Inc() }

// GraphRebuilt counts one referral graph rebuild.
func (m *LiveMetrics) GraphRebuilt() { m.GraphRebuilds.Inc() }

// RefreshError counts a failed backend query.
func (m *LiveMetrics) RefreshError(query string) { m.RefreshErrors.WithLabelValues(query).Inc() }

// RenderError counts a failed render.
func (m *LiveMetrics) RenderError(renderer string) { m.RenderErrors.WithLabelValues(renderer).Inc() }

// QueueDepth sets the number of pending events.
func (m *LiveMetrics) QueueDepth(n int) { m.QueueDepthGauge.Set(float64(n)) }

// DuplicateSuppressed counts a redelivered event.
func (m *LiveMetrics) DuplicateSuppressed() { m.Duplicates.Inc() }

// Collect implements the prometheus.Collector interface.
func (m *LiveMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ReadingsRecorded.Collect(ch)
	m.GraphRebuilds.Collect(ch)
	m.RefreshErrors.Collect(ch)
	m.RenderErrors.Collect(ch)
	m.QueueDepthGauge.Collect(ch)
	m.Duplicates.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *LiveMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ReadingsRecorded.Describe(ch)
	m.GraphRebuilds.Describe(ch)
	m.RefreshErrors.Describe(ch)
	m.RenderErrors.Describe(ch)
	m.QueueDepthGauge.Describe(ch)
	m.Duplicates.Describe(ch)
}
