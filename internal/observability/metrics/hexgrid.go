package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HexGridMetrics covers spatial aggregation passes.
type HexGridMetrics struct {
	DecodeSkipped prometheus.Counter
	Cells         *prometheus.GaugeVec
	BuildDuration prometheus.Histogram
}

// NewHexGridMetrics creates and registers the aggregation metrics.
func NewHexGridMetrics(registry *prometheus.Registry) (*HexGridMetrics, error) {
	m := &HexGridMetrics{
		DecodeSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decode_skipped_total",
			Help:      "Readings excluded from aggregation because their location or values were malformed",
		}),
		Cells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "hex_cells",
			Help:      "Cells in the most recent aggregation by tier",
		}, []string{"tier"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "hexmap_build_seconds",
			Help:      "Time spent querying and aggregating a hex map",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register hexgrid metrics: %w", err)
	}
	return m, nil
}

// ObserveBuild records one aggregation pass.
func (m *HexGridMetrics) ObserveBuild(elapsed time.Duration, skipped int, cellsByTier map[string]int) {
	m.BuildDuration.Observe(elapsed.Seconds())
	m.DecodeSkipped.Add(float64(skipped))
	for tier, n := range cellsByTier {
		m.Cells.WithLabelValues(tier).Set(float64(n))
	}
}

// Collect implements the prometheus.Collector interface.
func (m *HexGridMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DecodeSkipped.Collect(ch)
	m.Cells.Collect(ch)
	m.BuildDuration.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *HexGridMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DecodeSkipped.Describe(ch)
	m.Cells.Describe(ch)
	m.BuildDuration.Describe(ch)
}
