// Package live applies change stream events to the referral graph and the
// incentive ledger and fans each recomputed view out to renderers.
//
// All ledger and graph mutation happens on the goroutine running
// Coordinator.Run. Changes are applied strictly in submission order, so a
// node change rebuilds the graph before any reading queued after it is counted.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qubitrhythm/disensor/internal/datastore"
	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/ledger"
	"github.com/qubitrhythm/disensor/internal/logging"
	"github.com/qubitrhythm/disensor/internal/referral"
)

// Backend is the subset of the datastore the coordinator queries.
type Backend interface {
	GetNodes(ctx context.Context) ([]datastore.Node, error)
	GetReadingCounts(ctx context.Context) (map[string]int64, error)
	CountReadings(ctx context.Context) (int64, error)
}

// Config tunes a Coordinator. Zero values select defaults.
type Config struct {
	Rates        ledger.Rates
	Precision    int
	ActivitySize int
	Recorder     Recorder
	Dedup        *events.Deduplicator
	Logger       *slog.Logger
	Now          func() time.Time
}

type namedRenderer struct {
	name string
	r    Renderer
}

// Coordinator is the live update coordinator.
type Coordinator struct {
	backend  Backend
	graph    *referral.Graph
	ledger   *ledger.Ledger
	queue    *queue
	dedup    *events.Deduplicator
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	precision    int
	activitySize int

	renderMu  sync.RWMutex
	renderers []namedRenderer

	// owned by the loop goroutine
	stats    Stats
	activity []ActivityEntry

	running atomic.Bool
}

// New creates a coordinator reading snapshots from backend.
func New(backend Backend, cfg Config) *Coordinator {
	if cfg.Rates == (ledger.Rates{}) {
		cfg.Rates = ledger.DefaultRates()
	}
	if cfg.Precision <= 0 {
		cfg.Precision = ledger.DefaultPrecision
	}
	if cfg.ActivitySize <= 0 {
		cfg.ActivitySize = DefaultActivitySize
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.ForService("live")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	graph := referral.NewGraph()
	return &Coordinator{
		backend:      backend,
		graph:        graph,
		ledger:       ledger.New(graph, cfg.Rates),
		queue:        newQueue(),
		dedup:        cfg.Dedup,
		recorder:     cfg.Recorder,
		logger:       cfg.Logger,
		now:          cfg.Now,
		precision:    cfg.Precision,
		activitySize: cfg.ActivitySize,
	}
}

// AddRenderer registers r under name. Renderers are called in registration order.
func (c *Coordinator) AddRenderer(name string, r Renderer) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.renderers = append(c.renderers, namedRenderer{name: name, r: r})
}

// Submit queues a change for the loop. It never blocks and never drops.
func (c *Coordinator) Submit(change events.Change) {
	if change == nil {
		return
	}
	c.recorder.QueueDepth(c.queue.push(change))
}

// Pending returns the number of queued changes.
func (c *Coordinator) Pending() int {
	return c.queue.len()
}

// LoadSnapshot resets the ledger and graph from a full backend query and
// returns the resulting view. Each query that fails keeps the state it would
// have replaced. Must not be called concurrently with Run.
func (c *Coordinator) LoadSnapshot(ctx context.Context) (View, error) {
	var errs []error

	if total, err := c.backend.CountReadings(ctx); err != nil {
		c.refreshFailed(datastore.QueryCount, err)
		errs = append(errs, err)
	} else {
		c.stats.setReadings(total)
	}

	var nodeIDs []string
	if nodes, err := c.backend.GetNodes(ctx); err != nil {
		c.refreshFailed(datastore.QueryNodes, err)
		errs = append(errs, err)
	} else {
		nodeIDs = c.rebuildGraph(nodes)
	}

	if counts, err := c.backend.GetReadingCounts(ctx); err != nil {
		c.refreshFailed(datastore.QueryReadingCounts, err)
		errs = append(errs, err)
	} else {
		c.ledger.Reset(counts)
	}
	c.ledger.Track(nodeIDs...)

	view := c.view(events.TriggerSnapshotLoaded)
	if len(errs) > 0 {
		return view, errors.New(fmt.Errorf("snapshot incomplete: %w", errors.Join(errs...))).
			Component("live").
			Category(errors.CategoryQuery).
			Context("operation", "load_snapshot").
			Build()
	}

	c.logger.Info("snapshot loaded",
		"nodes", c.stats.TotalNodes,
		"edges", c.stats.GraphEdges,
		"readings", c.stats.TotalReadings)
	return view, nil
}

// Run loads the initial snapshot, renders it and applies queued changes
// until ctx is cancelled. A failed snapshot is logged and the loop starts
// with whatever state could be loaded.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.Newf("coordinator already running").
			Component("live").
			Category(errors.CategoryGeneric).
			Build()
	}
	defer c.running.Store(false)

	view, err := c.LoadSnapshot(ctx)
	if err != nil {
		c.logger.Warn("initial snapshot failed, serving partial state", "error", err)
	}
	c.render(ctx, view)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped", "pending", c.queue.len())
			return nil
		case <-c.queue.ready:
		}

		for {
			change, depth, ok := c.queue.pop()
			if !ok {
				break
			}
			c.recorder.QueueDepth(depth)
			c.apply(ctx, change)
			if ctx.Err() != nil {
				break
			}
		}
	}
}

// apply processes one change fully, including the render it triggers.
func (c *Coordinator) apply(ctx context.Context, change events.Change) {
	if c.dedup != nil && !c.dedup.ShouldProcess(change) {
		c.recorder.DuplicateSuppressed()
		c.logger.Debug("duplicate change suppressed", "table", change.Table(), "id", change.ChangeID())
		return
	}

	switch ev := change.(type) {
	case events.ReadingInserted:
		c.recordReading(ctx, ev)
	case *events.ReadingInserted:
		c.recordReading(ctx, *ev)
	case events.NodeChanged, *events.NodeChanged:
		c.refreshGraph(ctx)
	default:
		c.logger.Warn("unsupported change", "type", fmt.Sprintf("%T", change))
	}
}

func (c *Coordinator) recordReading(ctx context.Context, ev events.ReadingInserted) {
	if ev.NodeID == "" {
		c.logger.Debug("reading without node id ignored", "id", ev.ID)
		return
	}

	c.ledger.Record(ev.NodeID)
	c.stats.setReadings(c.stats.TotalReadings + 1)
	c.pushActivity(ev)
	c.recorder.ReadingRecorded()

	c.render(ctx, c.view(events.TriggerReadingRecorded))
}

// refreshGraph re-queries the node directory. On failure the previous graph
// stays in place and nothing is rendered.
func (c *Coordinator) refreshGraph(ctx context.Context) {
	nodes, err := c.backend.GetNodes(ctx)
	if err != nil {
		c.refreshFailed(datastore.QueryNodes, err)
		return
	}

	c.ledger.Track(c.rebuildGraph(nodes)...)
	c.recorder.GraphRebuilt()
	c.render(ctx, c.view(events.TriggerGraphRebuilt))
}

func (c *Coordinator) rebuildGraph(nodes []datastore.Node) []string {
	edges := make([]referral.Edge, 0, len(nodes))
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		edges = append(edges, referral.Edge{Invitee: n.ID, Inviter: n.ReferredBy})
		ids = append(ids, n.ID)
	}

	rs := c.graph.Rebuild(edges)
	if rs.SelfLoops > 0 || rs.MultiParent > 0 || rs.Invalid > 0 {
		c.logger.Warn("referral edges rejected",
			"self_loops", rs.SelfLoops,
			"multi_parent", rs.MultiParent,
			"invalid", rs.Invalid)
	}
	c.stats.TotalNodes = len(nodes)
	c.stats.GraphEdges = rs.Edges
	return ids
}

func (c *Coordinator) refreshFailed(query string, err error) {
	c.recorder.RefreshError(query)
	c.logger.Warn("refresh failed, keeping previous state", "query", query, "error", err)
}

func (c *Coordinator) pushActivity(ev events.ReadingInserted) {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	entry := ActivityEntry{
		NodeID:    ev.NodeID,
		ShortID:   shortID(ev.NodeID),
		DecibelDB: ev.DecibelDB,
		Timestamp: ts,
	}

	c.activity = append(c.activity, ActivityEntry{})
	copy(c.activity[1:], c.activity)
	c.activity[0] = entry
	if len(c.activity) > c.activitySize {
		c.activity = c.activity[:c.activitySize]
	}
}

func (c *Coordinator) view(trigger events.Trigger) View {
	activity := make([]ActivityEntry, len(c.activity))
	copy(activity, c.activity)

	return View{
		Trigger:     trigger,
		Leaderboard: c.ledger.Leaderboard(),
		Stats:       c.stats,
		Activity:    activity,
		Precision:   c.precision,
		GeneratedAt: c.now(),
	}
}

func (c *Coordinator) render(ctx context.Context, view View) {
	c.renderMu.RLock()
	renderers := c.renderers
	c.renderMu.RUnlock()

	for _, nr := range renderers {
		if err := nr.r.Render(ctx, view); err != nil {
			c.recorder.RenderError(nr.name)
			c.logger.Warn("render failed", "renderer", nr.name, "trigger", view.Trigger, "error", err)
		}
	}
}
