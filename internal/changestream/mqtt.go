package changestream

import (
	"context"
	"time"

	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/mqtt"
)

const mqttSourceName = "mqtt"

// MQTTSource subscribes to <prefix>/readings and <prefix>/nodes.
type MQTTSource struct {
	client   mqtt.Client
	prefix   string
	sink     Sink
	recorder Recorder
	qos      byte
	retry    time.Duration
}

// NewMQTTSource creates a source on client. rec may be nil.
func NewMQTTSource(client mqtt.Client, prefix string, sink Sink, rec Recorder) *MQTTSource {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &MQTTSource{client: client, prefix: prefix, sink: sink, recorder: rec, qos: 1, retry: 10 * time.Second}
}

// Name identifies the source in logs and metrics.
func (s *MQTTSource) Name() string { return mqttSourceName }

// Topics returns the subscribed topics keyed by table.
func (s *MQTTSource) Topics() map[string]string {
	return map[string]string{
		events.TableReadings: s.prefix + "/" + events.TableReadings,
		events.TableNodes:    s.prefix + "/" + events.TableNodes,
	}
}

// Run connects, subscribes and blocks until ctx is done. A failed
// connection is retried; the client itself handles later reconnects.
func (s *MQTTSource) Run(ctx context.Context) error {
	for table, topic := range s.Topics() {
		if err := s.client.Subscribe(ctx, topic, s.qos, func(_ string, payload []byte) {
			handle(mqttSourceName, s.sink, s.recorder, payload, table)
		}); err != nil {
			return err
		}
	}

	for !s.client.IsConnected() {
		err := s.client.Connect(ctx)
		if err == nil {
			break
		}
		log.Warn("change stream broker unavailable, retrying", "retry_in", s.retry, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.retry):
		}
	}
	log.Info("change stream subscribed", "source", mqttSourceName, "prefix", s.prefix)

	<-ctx.Done()
	s.client.Disconnect()
	return nil
}
