// mqtt.go: Package mqtt provides an abstraction for MQTT client functionality.
package mqtt

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/logging"
)

// MessageHandler receives messages of a subscription. It runs on the
// client's delivery goroutine and must not block.
type MessageHandler func(topic string, payload []byte)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	// It returns an error if the connection fails.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers handler for topic. Subscriptions are restored after a reconnect.
	Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Retain   bool // true to retain published messages at the broker
	QoS      byte // publish QoS

	ReconnectCooldown time.Duration
	MaxReconnectDelay time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

var mqttLogger = logging.ForService("mqtt")

// SetLogger replaces the package logger, e.g. with a rotating file logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		mqttLogger = l
	}
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		QoS:               1,
		ReconnectCooldown: 5 * time.Second,
		MaxReconnectDelay: 2 * time.Minute,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings builds a client config from the mqtt settings. role is
// appended to the client id together with a random suffix so that the
// publisher and the change stream subscriber never share a session.
func ConfigFromSettings(settings *conf.Settings, role string) Config {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Retain = settings.MQTT.Retain

	base := settings.MQTT.ClientID
	if base == "" {
		base = settings.Main.Name
	}
	if base == "" {
		base = "disensor"
	}
	cfg.ClientID = base + "-" + role + "-" + uuid.NewString()[:8]
	return cfg
}
