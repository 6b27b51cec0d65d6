package datastore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubitrhythm/disensor/internal/conf"
)

type queryCall struct {
	backend string
	query   string
	err     error
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []queryCall
}

func (r *recordingMetrics) RecordQuery(backend, query string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, queryCall{backend, query, err})
}

func strPtr(s string) *string { return &s }

// setupTestStore opens an in-memory SQLite store.
func setupTestStore(t *testing.T, opts ...Option) Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Backend.Type = conf.BackendSQLite
	settings.Backend.SQLite.Path = ":memory:"

	store, err := New(settings, opts...)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store Interface) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveNode(ctx, &Node{ID: "A"}))
	require.NoError(t, store.SaveNode(ctx, &Node{ID: "B", ReferredBy: strPtr("A")}))
	require.NoError(t, store.SaveNode(ctx, &Node{ID: "C", ReferredBy: strPtr("A")}))

	for i, id := range []string{"A", "B", "B", "C", "B"} {
		require.NoError(t, store.SaveReading(ctx, &Reading{
			NodeID:    id,
			Location:  "0101000020E610000050FC1873D79A5EC0D0D556EC2FE34240",
			DecibelDB: 40 + float64(i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	settings := &conf.Settings{}
	settings.Backend.Type = "cassandra"

	_, err := New(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestSQLiteQueries(t *testing.T) {
	store := setupTestStore(t)
	seed(t, store)
	ctx := context.Background()

	assert.Equal(t, conf.BackendSQLite, store.Backend())

	nodes, err := store.GetNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	byID := map[string]Node{}
	for _, n := range nodes {
		byID[n.ID] = n
	}
	assert.Nil(t, byID["A"].ReferredBy)
	require.NotNil(t, byID["B"].ReferredBy)
	assert.Equal(t, "A", *byID["B"].ReferredBy)

	counts, err := store.GetReadingCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 1, "B": 3, "C": 1}, counts)

	total, err := store.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	recent, err := store.GetRecentReadings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "B", recent[0].NodeID)
	assert.InDelta(t, 44.0, recent[0].DecibelDB, 1e-9)
	assert.True(t, recent[0].Timestamp.After(recent[1].Timestamp))
}

func TestSaveNodeUpdatesInviter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveNode(ctx, &Node{ID: "X"}))
	require.NoError(t, store.SaveNode(ctx, &Node{ID: "X", ReferredBy: strPtr("Y")}))

	nodes, err := store.GetNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.NotNil(t, nodes[0].ReferredBy)
	assert.Equal(t, "Y", *nodes[0].ReferredBy)
}

func TestEmptyStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	counts, err := store.GetReadingCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	recent, err := store.GetRecentReadings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestQueriesRecordMetrics(t *testing.T) {
	rec := &recordingMetrics{}
	store := setupTestStore(t, WithMetrics(rec))

	_, err := store.CountReadings(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, queryCall{conf.BackendSQLite, QueryCount, nil}, rec.calls[0])
}

func TestClosedStoreReturnsErrNotOpen(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.GetNodes(context.Background())
	require.ErrorIs(t, err, ErrNotOpen)
}
