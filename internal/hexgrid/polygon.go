package hexgrid

import (
	"cmp"
	"slices"
)

// Polygon is a cell ready for rendering.
type Polygon struct {
	CellID          string       `json:"cell_id"`
	Boundary        [][2]float64 `json:"boundary"` // [lat, lng] vertices
	Center          [2]float64   `json:"center"`
	Multiplier      float64      `json:"multiplier"`
	Tier            Tier         `json:"tier"`
	Color           string       `json:"color"`
	Opacity         float64      `json:"opacity"`
	AvgNoise        float64      `json:"avg_noise"`
	UniqueNodeCount int          `json:"unique_node_count"`
	Count           int          `json:"count"`
}

// Polygons renders every cell, sorted by cell id so output is stable.
// Cells whose boundary cannot be computed are left out.
func (r *Result) Polygons() []Polygon {
	ids := make([]CellID, 0, len(r.Cells))
	for id := range r.Cells {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b CellID) int { return cmp.Compare(a, b) })

	out := make([]Polygon, 0, len(ids))
	for _, id := range ids {
		cell := r.Cells[id]
		boundary, err := cellBoundary(id)
		if err != nil {
			continue
		}
		zone := cell.Zone()
		out = append(out, Polygon{
			CellID:          id.String(),
			Boundary:        boundary,
			Center:          [2]float64{cell.Center.Lat, cell.Center.Lng},
			Multiplier:      zone.Multiplier,
			Tier:            zone.Tier,
			Color:           zone.Color,
			Opacity:         zone.Opacity,
			AvgNoise:        cell.AvgNoise(),
			UniqueNodeCount: cell.UniqueNodeCount(),
			Count:           cell.Count,
		})
	}
	return out
}

// TierCounts tallies cells per tier.
func (r *Result) TierCounts() map[Tier]int {
	counts := map[Tier]int{TierDiscovery: 0, TierNormal: 0, TierSaturation: 0}
	for _, cell := range r.Cells {
		counts[cell.Zone().Tier]++
	}
	return counts
}
