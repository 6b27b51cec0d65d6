package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/logging"
	"github.com/qubitrhythm/disensor/internal/observability"
)

func dialLive(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func readLive(t *testing.T, conn *websocket.Conn) LiveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestLiveFeed(t *testing.T) {
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, testSettings(), WithMetrics(m))
	require.NoError(t, s.Views().Render(context.Background(), testView(events.TriggerSnapshotLoaded)))

	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	conn := dialLive(t, srv)

	initial := readLive(t, conn)
	assert.Equal(t, events.TriggerSnapshotLoaded, initial.Trigger)
	require.Len(t, initial.Leaderboard, 2)
	assert.Equal(t, "0.1050", initial.Leaderboard[0].Total)
	require.Len(t, initial.Activity, 1)

	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTP.LiveClients), 0)

	require.NoError(t, s.Views().Render(context.Background(), testView(events.TriggerReadingRecorded)))
	next := readLive(t, conn)
	assert.Equal(t, events.TriggerReadingRecorded, next.Trigger)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.InDelta(t, 0, testutil.ToFloat64(m.HTTP.LiveClients), 0)

	s.hub.Close()
}

func TestLiveFeedClosedOnShutdown(t *testing.T) {
	s := newTestServer(t, testSettings())
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	conn := dialLive(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	s.hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, s.hub.Len())

	// Connections after close are refused with a close frame.
	late := dialLive(t, srv)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_live_clients"})
	h := NewHub(logging.Discard(), gauge)

	slow := &hubClient{id: "slow", send: make(chan []byte, 1)}
	fast := &hubClient{id: "fast", send: make(chan []byte, 4)}
	require.True(t, h.add(slow))
	require.True(t, h.add(fast))
	// No writers run in this test.
	t.Cleanup(func() { h.wg.Add(-2) })

	view := testView(events.TriggerReadingRecorded)
	require.NoError(t, h.Broadcast(view))
	require.NoError(t, h.Broadcast(view))

	assert.Equal(t, 1, h.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(gauge), 0)
	assert.Len(t, fast.send, 2)

	// The slow client's channel is closed after its buffered message.
	<-slow.send
	_, open := <-slow.send
	assert.False(t, open)
}
