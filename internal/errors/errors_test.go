package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderKeepsContextAndUnwraps(t *testing.T) {
	base := NewStd("no route to backend")
	ee := New(base).
		Component("datastore").
		Category(CategoryQuery).
		Context("table", "nodes").
		Priority("bogus").
		Build()

	require.ErrorIs(t, ee, base)
	assert.True(t, IsCategory(ee, CategoryQuery))
	assert.False(t, IsNotFound(ee))
	assert.Equal(t, PriorityMedium, ee.Priority)
	assert.Equal(t, "nodes", ee.GetContext()["table"])

	wrapped := fmt.Errorf("refresh: %w", ee)
	assert.True(t, IsCategory(wrapped, CategoryQuery))
}

func TestReporterReceivesErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("dial tcp: connection refused")).Build()

	require.Len(t, reporter.reported, 1)
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryNetwork, ee.Category)
}

func TestScrubMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		notWant string
	}{
		{"query string", "GET https://x.supabase.co/rest/v1/nodes?apikey=secret123 failed", "secret123"},
		{"bearer", "Authorization: Bearer eyJhbGciOi rejected", "eyJhbGciOi"},
		{"password", "mqtt password=hunter2", "hunter2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotContains(t, scrubMessage(tt.in), tt.notWant)
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := &EnhancedError{
		Err:       NewStd("x"),
		Component: "datastore",
		Category:  CategoryQuery,
		Context:   map[string]any{"operation": "get_nodes"},
	}
	assert.Equal(t, "Datastore Query Error Get Nodes", generateErrorTitle(ee))
}
