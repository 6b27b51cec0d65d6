package live

import (
	"context"
	"time"

	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/ledger"
)

const (
	// MarketValueRate is the estimated market value of one reading.
	MarketValueRate = 0.0005
	// DefaultActivitySize is how many ingress entries the activity feed keeps.
	DefaultActivitySize = 50
	// shortIDLength is the node id prefix shown in the activity feed.
	shortIDLength = 8
)

// Stats are the dashboard totals.
type Stats struct {
	TotalReadings int64   `json:"total_readings"`
	TotalNodes    int     `json:"total_nodes"`
	GraphEdges    int     `json:"graph_edges"`
	MarketValue   float64 `json:"market_value"`
}

func (s *Stats) setReadings(n int64) {
	s.TotalReadings = n
	s.MarketValue = float64(n) * MarketValueRate
}

// ActivityEntry is one ingress event in the activity feed.
type ActivityEntry struct {
	NodeID    string    `json:"node_id"`
	ShortID   string    `json:"short_id"`
	DecibelDB float64   `json:"decibel_db"`
	Timestamp time.Time `json:"timestamp"`
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

// View is everything a renderer needs after one recompute. Views are
// immutable once handed out; renderers may keep them.
type View struct {
	Trigger     events.Trigger  `json:"trigger"`
	Leaderboard []ledger.Row    `json:"leaderboard"`
	Stats       Stats           `json:"stats"`
	Activity    []ActivityEntry `json:"activity"`
	Precision   int             `json:"precision"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Row returns the leaderboard row of id.
func (v View) Row(id string) (ledger.Row, bool) {
	for _, r := range v.Leaderboard {
		if r.ID == id {
			return r, true
		}
	}
	return ledger.Row{}, false
}

// DisplayRows renders the leaderboard amounts at the view's precision.
func (v View) DisplayRows() []ledger.DisplayRow {
	return ledger.DisplayRows(v.Leaderboard, v.Precision)
}

// Renderer consumes recomputed views. Render runs on the coordinator
// goroutine, so implementations must return promptly.
type Renderer interface {
	Render(ctx context.Context, view View) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, view View) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, view View) error {
	return f(ctx, view)
}
