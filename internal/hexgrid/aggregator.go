// Package hexgrid bins decoded reading locations into hexagonal cells,
// extracts recent readings as live points and classifies cells by density.
package hexgrid

import (
	"math"
	"time"

	"github.com/qubitrhythm/disensor/internal/geo"
)

// Default aggregation parameters.
const (
	DefaultResolution     = 9
	DefaultLiveWindow     = 10 * time.Minute
	DefaultNoisyThreshold = 50.0
)

// Reading is the subset of a stored reading the aggregator needs.
type Reading struct {
	NodeID      string
	Location    string
	DecibelDB   float64
	PressureHpa float64
	Timestamp   time.Time
}

// Cell accumulates the readings that fell into one hex cell.
type Cell struct {
	ID       CellID
	Count    int
	Nodes    map[string]struct{}
	NoiseSum float64
	Center   geo.LatLng
}

// UniqueNodeCount is the number of distinct nodes that contributed to the cell.
func (c *Cell) UniqueNodeCount() int {
	return len(c.Nodes)
}

// AvgNoise is the mean decibel level of the cell.
func (c *Cell) AvgNoise() float64 {
	if c.Count == 0 {
		return 0
	}
	return c.NoiseSum / float64(c.Count)
}

// Zone classifies the cell by its unique node count.
func (c *Cell) Zone() Zone {
	return Classify(c.UniqueNodeCount())
}

// LivePoint is a single recent reading shown individually on the map.
type LivePoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	NodeID    string    `json:"node_id"`
	DecibelDB float64   `json:"decibel_db"`
	IsNoisy   bool      `json:"is_noisy"`
	Timestamp time.Time `json:"timestamp"`
}

// Bounds is the bounding box of every decoded point.
type Bounds struct {
	SouthWest geo.LatLng `json:"south_west"`
	NorthEast geo.LatLng `json:"north_east"`
}

func (b *Bounds) extend(ll geo.LatLng) {
	b.SouthWest.Lat = math.Min(b.SouthWest.Lat, ll.Lat)
	b.SouthWest.Lng = math.Min(b.SouthWest.Lng, ll.Lng)
	b.NorthEast.Lat = math.Max(b.NorthEast.Lat, ll.Lat)
	b.NorthEast.Lng = math.Max(b.NorthEast.Lng, ll.Lng)
}

// Result is the output of one aggregation pass.
type Result struct {
	Resolution int
	Cells      map[CellID]*Cell
	Live       []LivePoint
	Skipped    int     // readings excluded from both cells and live points
	Bounds     *Bounds // nil when nothing decoded
}

// Aggregator turns a batch of readings into cells and live points.
// The zero value uses the defaults above and the wall clock.
type Aggregator struct {
	Resolution     int
	LiveWindow     time.Duration
	NoisyThreshold float64
	Now            func() time.Time
}

// NewAggregator returns an aggregator with default parameters at the given resolution.
func NewAggregator(resolution int) *Aggregator {
	return &Aggregator{
		Resolution:     resolution,
		LiveWindow:     DefaultLiveWindow,
		NoisyThreshold: DefaultNoisyThreshold,
	}
}

// Aggregate performs a single pass over readings. Malformed readings are counted
// in Result.Skipped and never abort the pass. Cell contents do not depend on the
// order of readings; only the order of Result.Live does.
func (a *Aggregator) Aggregate(readings []Reading) *Result {
	resolution := a.Resolution
	liveWindow := a.LiveWindow
	if liveWindow <= 0 {
		liveWindow = DefaultLiveWindow
	}
	noisy := a.NoisyThreshold
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}

	res := &Result{
		Resolution: resolution,
		Cells:      make(map[CellID]*Cell),
	}

	for i := range readings {
		r := &readings[i]

		if !finite(r.DecibelDB) || !finite(r.PressureHpa) {
			res.Skipped++
			continue
		}
		ll, ok := geo.DecodeOK(r.Location)
		if !ok {
			res.Skipped++
			continue
		}
		id, err := cellFor(ll, resolution)
		if err != nil {
			res.Skipped++
			continue
		}

		cell, exists := res.Cells[id]
		if !exists {
			cell = &Cell{ID: id, Nodes: make(map[string]struct{})}
			cell.Center, err = cellCenter(id)
			if err != nil {
				cell.Center = ll
			}
			res.Cells[id] = cell
		}
		cell.Count++
		cell.Nodes[r.NodeID] = struct{}{}
		cell.NoiseSum += r.DecibelDB

		if res.Bounds == nil {
			res.Bounds = &Bounds{SouthWest: ll, NorthEast: ll}
		} else {
			res.Bounds.extend(ll)
		}

		if now.Sub(r.Timestamp) < liveWindow {
			res.Live = append(res.Live, LivePoint{
				Lat:       ll.Lat,
				Lng:       ll.Lng,
				NodeID:    r.NodeID,
				DecibelDB: r.DecibelDB,
				IsNoisy:   r.DecibelDB > noisy,
				Timestamp: r.Timestamp,
			})
		}
	}

	return res
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
