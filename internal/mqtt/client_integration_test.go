//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startMosquitto runs an anonymous mosquitto broker and returns its tcp url.
func startMosquitto(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "eclipse-mosquitto:2",
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.PortEndpoint(ctx, "1883/tcp", "tcp")
	require.NoError(t, err)
	return endpoint
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	broker := startMosquitto(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	newClient := func(id string) Client {
		cfg := DefaultConfig()
		cfg.Broker = broker
		cfg.ClientID = id
		c, err := NewClient(cfg, nil)
		require.NoError(t, err)
		require.NoError(t, c.Connect(ctx))
		t.Cleanup(c.Disconnect)
		return c
	}

	sub := newClient("sub")
	received := make(chan []byte, 1)
	require.NoError(t, sub.Subscribe(ctx, "disensor/test", 1, func(_ string, payload []byte) {
		received <- payload
	}))

	pub := newClient("pub")
	require.NoError(t, pub.Publish(ctx, "disensor/test", []byte("hello")))

	select {
	case p := <-received:
		require.Equal(t, "hello", string(p))
	case <-ctx.Done():
		t.Fatal("message not received")
	}
}
