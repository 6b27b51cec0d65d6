package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/errors"
)

// captureTransport keeps events in memory instead of sending them.
type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *captureTransport) Configure(sentry.ClientOptions) {}
func (t *captureTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}
func (t *captureTransport) Flush(time.Duration) bool { return true }
func (t *captureTransport) FlushWithContext(context.Context) bool { return true }
func (t *captureTransport) Close() {}
func (t *captureTransport) captured() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func TestInitSentryWithoutDSNIsDisabled(t *testing.T) {
	settings := &conf.Settings{}
	require.NoError(t, InitSentry(settings))
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestErrorsAreReportedScrubbed(t *testing.T) {
	transport := &captureTransport{}
	settings := &conf.Settings{Version: "test"}
	settings.Backend.Type = conf.BackendREST

	require.NoError(t, initSentry(settings, transport))
	t.Cleanup(Flush)

	errors.New(errors.NewStd("GET https://x.supabase.co/rest/v1/nodes?apikey=secret failed")).
		Component("datastore").
		Category(errors.CategoryQuery).
		Context("operation", "nodes").
		Build()

	events := transport.captured()
	require.Len(t, events, 1)
	ev := events[0]
	assert.NotContains(t, ev.Message, "secret")
	assert.Equal(t, "datastore", ev.Tags["component"])
	assert.Equal(t, sentry.LevelWarning, ev.Level)
	assert.Empty(t, ev.ServerName)
}

func TestBeforeSendStripsIdentity(t *testing.T) {
	ev := &sentry.Event{
		ServerName: "edge-01",
		User:       sentry.User{ID: "u"},
		Tags:       map[string]string{"hostname": "edge-01", "component": "api"},
		Contexts:   map[string]sentry.Context{"device": {"arch": "arm64"}},
	}

	out := beforeSend(ev, nil)
	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Tags, "hostname")
	assert.Equal(t, "api", out.Tags["component"])
	assert.NotContains(t, out.Contexts, "device")
}
