package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/qubitrhythm/disensor/internal/datastore"
	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/ledger"
	"github.com/qubitrhythm/disensor/internal/logging"
	"github.com/qubitrhythm/disensor/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

type fakeBackend struct {
	mu       sync.Mutex
	nodes    []datastore.Node
	counts   map[string]int64
	total    int64
	nodesErr error
	calls    []string
}

func (f *fakeBackend) GetNodes(context.Context) ([]datastore.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "nodes")
	if f.nodesErr != nil {
		return nil, f.nodesErr
	}
	return append([]datastore.Node(nil), f.nodes...), nil
}

func (f *fakeBackend) GetReadingCounts(context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "counts")
	out := make(map[string]int64, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) CountReadings(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "total")
	return f.total, nil
}

func (f *fakeBackend) setNodes(nodes []datastore.Node, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = nodes
	f.nodesErr = err
}

type countingRecorder struct {
	mu            sync.Mutex
	readings      int
	rebuilds      int
	refreshErrors map[string]int
	renderErrors  map[string]int
	duplicates    int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{refreshErrors: map[string]int{}, renderErrors: map[string]int{}}
}

func (r *countingRecorder) ReadingRecorded() { r.mu.Lock(); r.readings++; r.mu.Unlock() }
func (r *countingRecorder) GraphRebuilt()    { r.mu.Lock(); r.rebuilds++; r.mu.Unlock() }
func (r *countingRecorder) RefreshError(q string) {
	r.mu.Lock()
	r.refreshErrors[q]++
	r.mu.Unlock()
}
func (r *countingRecorder) RenderError(n string) {
	r.mu.Lock()
	r.renderErrors[n]++
	r.mu.Unlock()
}
func (r *countingRecorder) QueueDepth(int)       {}
func (r *countingRecorder) DuplicateSuppressed() { r.mu.Lock(); r.duplicates++; r.mu.Unlock() }

func ptr(s string) *string { return &s }

func newBackend() *fakeBackend {
	return &fakeBackend{
		nodes: []datastore.Node{
			{ID: "inviter-0001"},
			{ID: "child-0001", ReferredBy: ptr("inviter-0001")},
		},
		counts: map[string]int64{"inviter-0001": 100, "child-0001": 50},
		total:  150,
	}
}

// start runs a coordinator and returns a channel of rendered views.
func start(t *testing.T, c *Coordinator) <-chan View {
	t.Helper()
	views := make(chan View, 64)
	c.AddRenderer("test", RendererFunc(func(_ context.Context, v View) error {
		views <- v
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return views
}

func next(t *testing.T, views <-chan View) View {
	t.Helper()
	return testutil.Receive(t, views, testutil.ShortTestTimeout, "no view rendered")
}

func testConfig(rec Recorder) Config {
	return Config{Recorder: rec, Logger: logging.Discard()}
}

func TestSnapshotComputesEarnings(t *testing.T) {
	backend := newBackend()
	c := New(backend, testConfig(nil))

	view, err := c.LoadSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"total", "nodes", "counts"}, backend.calls)
	assert.Equal(t, events.TriggerSnapshotLoaded, view.Trigger)
	assert.Equal(t, Stats{TotalReadings: 150, TotalNodes: 2, GraphEdges: 1, MarketValue: 0.075}, view.Stats)

	row, ok := view.Row("inviter-0001")
	require.True(t, ok)
	assert.Equal(t, 1, row.Rank)
	assert.True(t, row.IsInviter)

	display := row.Display(view.Precision)
	assert.Equal(t, "0.1000", display.Base)
	assert.Equal(t, "0.0050", display.Bonus)
	assert.Equal(t, "0.1050", display.Total)
}

func TestSnapshotTracksNodesWithoutReadings(t *testing.T) {
	backend := newBackend()
	backend.nodes = append(backend.nodes, datastore.Node{ID: "quiet"})
	c := New(backend, testConfig(nil))

	view, err := c.LoadSnapshot(context.Background())
	require.NoError(t, err)

	row, ok := view.Row("quiet")
	require.True(t, ok)
	assert.Zero(t, row.Pulses)
	assert.Len(t, view.Leaderboard, 3)
}

func TestReadingTriggersFullRecompute(t *testing.T) {
	rec := newCountingRecorder()
	c := New(newBackend(), testConfig(rec))
	views := start(t, c)
	require.Equal(t, events.TriggerSnapshotLoaded, next(t, views).Trigger)

	c.Submit(events.ReadingInserted{ID: "r1", NodeID: "child-0001", DecibelDB: 61})

	v := next(t, views)
	assert.Equal(t, events.TriggerReadingRecorded, v.Trigger)
	assert.Equal(t, int64(151), v.Stats.TotalReadings)

	inviter, _ := v.Row("inviter-0001")
	assert.InDelta(t, 0.0051, inviter.Bonus, 1e-12)

	require.Len(t, v.Activity, 1)
	assert.Equal(t, "child-00", v.Activity[0].ShortID)
}

func TestEveryReadingIsRendered(t *testing.T) {
	rec := newCountingRecorder()
	c := New(newBackend(), testConfig(rec))
	views := start(t, c)
	next(t, views)

	const n = 20
	for range n {
		c.Submit(events.ReadingInserted{NodeID: "new-node"})
	}

	var last View
	for i := range n {
		last = next(t, views)
		row, ok := last.Row("new-node")
		require.True(t, ok)
		assert.Equal(t, int64(i+1), row.Pulses)
	}
	assert.Equal(t, int64(150+n), last.Stats.TotalReadings)
}

func TestNodeChangeRebuildsBeforeLaterReadings(t *testing.T) {
	backend := newBackend()
	c := New(backend, testConfig(nil))
	views := start(t, c)
	next(t, views)

	backend.setNodes(append(backend.nodes, datastore.Node{ID: "late", ReferredBy: ptr("child-0001")}), nil)

	c.Submit(events.NodeChanged{ID: "n1", NodeID: "late", ReferredBy: ptr("child-0001"), Op: events.OpInsert})
	c.Submit(events.ReadingInserted{ID: "r1", NodeID: "late"})

	rebuilt := next(t, views)
	assert.Equal(t, events.TriggerGraphRebuilt, rebuilt.Trigger)
	assert.Equal(t, 3, rebuilt.Stats.TotalNodes)

	recorded := next(t, views)
	assert.Equal(t, events.TriggerReadingRecorded, recorded.Trigger)
	child, _ := recorded.Row("child-0001")
	assert.True(t, child.IsInviter)
	assert.InDelta(t, 0.0001, child.Bonus, 1e-12)
}

func TestNodeQueryFailureKeepsGraph(t *testing.T) {
	backend := newBackend()
	rec := newCountingRecorder()
	c := New(backend, testConfig(rec))
	views := start(t, c)
	next(t, views)

	backend.setNodes(nil, errors.NewStd("connection reset"))
	c.Submit(events.NodeChanged{NodeID: "child-0001", Op: events.OpUpdate})
	c.Submit(events.ReadingInserted{NodeID: "child-0001"})

	v := next(t, views)
	assert.Equal(t, events.TriggerReadingRecorded, v.Trigger)
	inviter, _ := v.Row("inviter-0001")
	assert.True(t, inviter.IsInviter)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.refreshErrors[datastore.QueryNodes])
	assert.Zero(t, rec.rebuilds)
}

func TestRenderErrorDoesNotStopLoop(t *testing.T) {
	rec := newCountingRecorder()
	c := New(newBackend(), testConfig(rec))
	c.AddRenderer("broken", RendererFunc(func(context.Context, View) error {
		return errors.NewStd("broker unavailable")
	}))
	views := start(t, c)
	next(t, views)

	c.Submit(events.ReadingInserted{NodeID: "child-0001"})
	next(t, views)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 2, rec.renderErrors["broken"])
}

func TestDuplicateChangesAreSuppressed(t *testing.T) {
	rec := newCountingRecorder()
	cfg := testConfig(rec)
	cfg.Dedup = events.NewDeduplicator(time.Minute)
	c := New(newBackend(), cfg)
	views := start(t, c)
	next(t, views)

	c.Submit(events.ReadingInserted{ID: "r1", NodeID: "child-0001"})
	c.Submit(events.ReadingInserted{ID: "r1", NodeID: "child-0001"})
	c.Submit(events.ReadingInserted{ID: "r2", NodeID: "child-0001"})

	first := next(t, views)
	second := next(t, views)
	assert.Equal(t, int64(151), first.Stats.TotalReadings)
	assert.Equal(t, int64(152), second.Stats.TotalReadings)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.duplicates)
}

func TestActivityIsBoundedNewestFirst(t *testing.T) {
	cfg := testConfig(nil)
	cfg.ActivitySize = 3
	c := New(newBackend(), cfg)

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		c.pushActivity(events.ReadingInserted{NodeID: "n", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	require.Len(t, c.activity, 3)
	assert.Equal(t, base.Add(4*time.Second), c.activity[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Second), c.activity[2].Timestamp)
}

func TestRunTwiceFails(t *testing.T) {
	c := New(newBackend(), testConfig(nil))
	views := start(t, c)
	next(t, views)

	err := c.Run(context.Background())
	require.Error(t, err)
}

func TestDefaultRates(t *testing.T) {
	c := New(newBackend(), testConfig(nil))
	assert.Equal(t, ledger.DefaultRates(), c.ledger.Rates())
}
