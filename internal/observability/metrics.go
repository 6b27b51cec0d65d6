// Package observability provides metrics and monitoring capabilities for the DiSensor service.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qubitrhythm/disensor/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Live         *metrics.LiveMetrics
	HexGrid      *metrics.HexGridMetrics
	ChangeStream *metrics.ChangeStreamMetrics
	MQTT         *metrics.MQTTMetrics
	Datastore    *metrics.DatastoreMetrics
	HTTP         *metrics.HTTPMetrics
}

// NewMetrics creates a new instance of Metrics on a private registry,
// initializing all metric collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	liveMetrics, err := metrics.NewLiveMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create live metrics: %w", err)
	}

	hexgridMetrics, err := metrics.NewHexGridMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create hexgrid metrics: %w", err)
	}

	changeStreamMetrics, err := metrics.NewChangeStreamMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create change stream metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create http metrics: %w", err)
	}

	return &Metrics{
		registry:     registry,
		Live:         liveMetrics,
		HexGrid:      hexgridMetrics,
		ChangeStream: changeStreamMetrics,
		MQTT:         mqttMetrics,
		Datastore:    datastoreMetrics,
		HTTP:         httpMetrics,
	}, nil
}

// Registry returns the registry every collector is registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}

// promErrorLogger adapts the package logger to promhttp.Logger.
type promErrorLogger struct{}

func (promErrorLogger) Println(v ...any) {
	log.Error("metrics handler error", "error", fmt.Sprint(v...))
}
