package analysis

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qubitrhythm/disensor/internal/api"
	"github.com/qubitrhythm/disensor/internal/changestream"
	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/datastore"
	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/live"
	"github.com/qubitrhythm/disensor/internal/mqtt"
	"github.com/qubitrhythm/disensor/internal/observability"
	"github.com/qubitrhythm/disensor/internal/telemetry"
)

// brokerRetryInterval is the pause between failed publisher connection attempts.
const brokerRetryInterval = 10 * time.Second

type component struct {
	name string
	run  func(ctx context.Context) error
}

// Service is the assembled realtime mode: the coordinator, its change
// sources and every renderer.
type Service struct {
	settings    *conf.Settings
	metrics     *observability.Metrics
	coordinator *live.Coordinator
	server      *api.Server
	components  []component
}

// Realtime runs the dashboard service until SIGINT or SIGTERM.
func Realtime(ctx context.Context, settings *conf.Settings) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.InitSentry(settings); err != nil {
		GetLogger().Warn("error reporting disabled", "error", err)
	}
	defer telemetry.Flush()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	store, err := openStore(settings, datastore.WithMetrics(metrics.Datastore))
	if err != nil {
		return err
	}
	defer closeStore(store)

	svc, err := NewService(settings, store, metrics)
	if err != nil {
		return err
	}

	GetLogger().Info("starting realtime mode",
		"backend", store.Backend(),
		"components", svc.ComponentNames(),
		"version", settings.Version)
	return svc.Run(ctx)
}

// NewService assembles the realtime components over an open backend.
func NewService(settings *conf.Settings, store datastore.Interface, metrics *observability.Metrics) (*Service, error) {
	cfg := coordinatorConfig(settings)
	cfg.Recorder = metrics.Live
	cfg.Dedup = events.NewDeduplicator(events.DefaultDedupTTL)

	s := &Service{
		settings:    settings,
		metrics:     metrics,
		coordinator: live.New(store, cfg),
	}
	s.add("coordinator", s.coordinator.Run)

	if settings.WebServer.Enabled {
		hexmap := api.NewHexMapBuilder(store, api.HexMapConfigFromSettings(settings.HexGrid), metrics.HexGrid)
		server, err := api.New(settings, api.WithMetrics(metrics), api.WithHexMap(hexmap))
		if err != nil {
			return nil, err
		}
		s.server = server
		s.coordinator.AddRenderer("api", server.Views())
		s.add("api", server.Run)
	}

	if settings.Telemetry.Enabled && settings.Telemetry.Listen != "" {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return nil, err
		}
		s.add("telemetry", endpoint.Run)
	}

	if settings.MQTT.Enabled {
		client, err := mqtt.NewClient(mqtt.ConfigFromSettings(settings, "publisher"), metrics.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		s.coordinator.AddRenderer("mqtt", mqtt.NewLeaderboardPublisher(client, settings.MQTT.Topic))
		s.add("mqtt-publisher", func(ctx context.Context) error {
			return keepConnected(ctx, client)
		})
	}

	if err := s.addSources(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) addSources() error {
	cs := s.settings.ChangeStream

	if cs.MQTT.Enabled {
		client, err := mqtt.NewClient(mqtt.ConfigFromSettings(s.settings, "changestream"), s.metrics.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt change stream: %w", err)
		}
		src := changestream.NewMQTTSource(client, cs.MQTT.Topic, s.coordinator, s.metrics.ChangeStream)
		s.add("changestream-"+src.Name(), src.Run)
	}

	if cs.Kafka.Enabled {
		src, err := changestream.NewKafkaSource(changestream.KafkaConfig{
			Brokers: cs.Kafka.Brokers,
			Topic:   cs.Kafka.Topic,
			GroupID: cs.Kafka.GroupID,
		}, s.coordinator, s.metrics.ChangeStream)
		if err != nil {
			return err
		}
		s.add("changestream-"+src.Name(), src.Run)
	}

	if !cs.MQTT.Enabled && !cs.Kafka.Enabled {
		GetLogger().Warn("no change stream enabled, the leaderboard will only reflect the initial snapshot")
	}
	return nil
}

func (s *Service) add(name string, run func(ctx context.Context) error) {
	s.components = append(s.components, component{name: name, run: run})
}

// ComponentNames lists the components Run will start.
func (s *Service) ComponentNames() []string {
	names := make([]string, len(s.components))
	for i, c := range s.components {
		names[i] = c.name
	}
	return names
}

// Coordinator returns the live update coordinator.
func (s *Service) Coordinator() *live.Coordinator {
	return s.coordinator
}

// Server returns the API server, nil when the web server is disabled.
func (s *Service) Server() *api.Server {
	return s.server
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails, which stops the rest.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.components {
		g.Go(func() error {
			err := c.run(gctx)
			if err != nil {
				GetLogger().Error("component failed", "component", c.name, "error", err)
				return fmt.Errorf("%s: %w", c.name, err)
			}
			GetLogger().Debug("component stopped", "component", c.name)
			return nil
		})
	}

	err := g.Wait()
	GetLogger().Info("realtime mode stopped")
	return err
}

// keepConnected connects client, retrying until it succeeds, then holds
// the session until ctx is done. Paho reconnects on its own afterwards.
func keepConnected(ctx context.Context, client mqtt.Client) error {
	for !client.IsConnected() {
		err := client.Connect(ctx)
		if err == nil {
			break
		}
		GetLogger().Warn("mqtt broker unavailable, retrying", "retry_in", brokerRetryInterval, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(brokerRetryInterval):
		}
	}

	<-ctx.Done()
	client.Disconnect()
	return nil
}
