package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ChangeStreamMetrics counts messages received from change stream sources.
type ChangeStreamMetrics struct {
	Messages *prometheus.CounterVec
}

// NewChangeStreamMetrics creates and registers the change stream metrics.
func NewChangeStreamMetrics(registry *prometheus.Registry) (*ChangeStreamMetrics, error) {
	m := &ChangeStreamMetrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "changestream_messages_total",
			Help:      "Change stream messages by source and result",
		}, []string{"source", "result"}),
	}
	if err := registry.Register(m.Messages); err != nil {
		return nil, fmt.Errorf("failed to register change stream metrics: %w", err)
	}
	return m, nil
}

// Message counts one message from source with the given result.
func (m *ChangeStreamMetrics) Message(source, result string) {
	m.Messages.WithLabelValues(source, result).Inc()
}
