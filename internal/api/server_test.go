package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/ledger"
	"github.com/qubitrhythm/disensor/internal/live"
	"github.com/qubitrhythm/disensor/internal/logging"
	"github.com/qubitrhythm/disensor/internal/observability"
	"github.com/qubitrhythm/disensor/internal/referral"
	"github.com/qubitrhythm/disensor/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func testSettings() *conf.Settings {
	settings := &conf.Settings{Version: "test", BuildDate: "2026-01-01"}
	settings.WebServer.Listen = "127.0.0.1:0"
	return settings
}

func newTestServer(t *testing.T, settings *conf.Settings, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithLogger(logging.Discard())}, opts...)
	s, err := New(settings, opts...)
	require.NoError(t, err)
	return s
}

// testView has node-a with 100 pulses inviting node-b with 50.
func testView(trigger events.Trigger) live.View {
	inviter := "node-a"
	graph := referral.NewGraph()
	graph.Rebuild([]referral.Edge{
		{Invitee: "node-a"},
		{Invitee: "node-b", Inviter: &inviter},
	})
	l := ledger.New(graph, ledger.DefaultRates())
	l.Reset(map[string]int64{"node-a": 100, "node-b": 50})

	return live.View{
		Trigger:     trigger,
		Leaderboard: l.Leaderboard(),
		Stats:       live.Stats{TotalReadings: 150, TotalNodes: 2, GraphEdges: 1, MarketValue: 0.075},
		Activity: []live.ActivityEntry{
			{NodeID: "node-b", ShortID: "node-b", DecibelDB: 61.5, Timestamp: time.Unix(1700000000, 0).UTC()},
		},
		Precision:   ledger.DefaultPrecision,
		GeneratedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestEndpointsBeforeFirstView(t *testing.T) {
	s := newTestServer(t, testSettings())

	for _, path := range []string{"/api/v1/leaderboard", "/api/v1/stats", "/api/v1/activity", "/api/v1/nodes/node-a/earnings"} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, notReadyMessage, resp.Message)
		assert.Len(t, resp.CorrelationID, 8)
	}
}

func TestLeaderboard(t *testing.T) {
	s := newTestServer(t, testSettings())
	require.NoError(t, s.Views().Render(context.Background(), testView(events.TriggerSnapshotLoaded)))

	rec := get(t, s, "/api/v1/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LeaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, events.TriggerSnapshotLoaded, resp.Trigger)
	require.Len(t, resp.Leaderboard, 2)

	top := resp.Leaderboard[0]
	assert.Equal(t, "node-a", top.ID)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "0.1000", top.Base)
	assert.Equal(t, "0.0050", top.Bonus)
	assert.Equal(t, "0.1050", top.Total)
	assert.True(t, top.IsInviter)
	assert.True(t, top.HasBonus)

	assert.Equal(t, "0.0500", resp.Leaderboard[1].Total)
	assert.Equal(t, int64(150), resp.Stats.TotalReadings)
}

func TestNodeEarnings(t *testing.T) {
	s := newTestServer(t, testSettings())
	require.NoError(t, s.Views().Render(context.Background(), testView(events.TriggerSnapshotLoaded)))

	rec := get(t, s, "/api/v1/nodes/node-a/earnings")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EarningsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0.1050", resp.Total)
	assert.InDelta(t, 0.105, resp.Raw.Total, 1e-12)

	rec = get(t, s, "/api/v1/nodes/ghost/earnings")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAndActivity(t *testing.T) {
	s := newTestServer(t, testSettings())
	require.NoError(t, s.Views().Render(context.Background(), testView(events.TriggerReadingRecorded)))

	rec := get(t, s, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats live.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalNodes)
	assert.InDelta(t, 0.075, stats.MarketValue, 1e-12)

	rec = get(t, s, "/api/v1/activity")
	require.Equal(t, http.StatusOK, rec.Code)
	var activity []live.ActivityEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &activity))
	require.Len(t, activity, 1)
	assert.Equal(t, "node-b", activity[0].NodeID)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, testSettings())

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, false, body["live_ready"])
}

func TestUnknownRouteUsesErrorResponse(t *testing.T) {
	s := newTestServer(t, testSettings())

	rec := get(t, s, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestMetricsRouteAndRequestMetrics(t *testing.T) {
	settings := testSettings()
	settings.Telemetry.Enabled = true

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, settings, WithMetrics(m))
	require.NoError(t, s.Views().Render(context.Background(), testView(events.TriggerSnapshotLoaded)))

	require.Equal(t, http.StatusOK, get(t, s, "/api/v1/leaderboard").Code)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `disensor_http_requests_total{code="200",method="GET",route="/api/v1/leaderboard"} 1`)
}

func TestMetricsRouteAbsentWithSeparateListener(t *testing.T) {
	settings := testSettings()
	settings.Telemetry.Enabled = true
	settings.Telemetry.Listen = ":9090"

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, settings, WithMetrics(m))

	assert.Equal(t, http.StatusNotFound, get(t, s, "/metrics").Code)
}

func TestRateLimit(t *testing.T) {
	settings := testSettings()
	settings.WebServer.RateLimit = 0.01
	settings.WebServer.Burst = 1
	s := newTestServer(t, settings)

	assert.Equal(t, http.StatusOK, get(t, s, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/api/v1/stats").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, s, "/api/v1/stats").Code)
	// Health probes are exempt.
	assert.Equal(t, http.StatusOK, get(t, s, "/health").Code)
}

func TestInvalidConfig(t *testing.T) {
	settings := testSettings()
	settings.WebServer.RateLimit = -1

	_, err := New(settings)
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Echo().ListenerAddr() != nil }, time.Second, 10*time.Millisecond)
	cancel()
	testutil.RequireNoErrorWithin(t, done, testutil.DefaultTestTimeout, "server did not stop")
}
