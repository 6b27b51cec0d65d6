package hexgrid

import (
	"github.com/uber/h3-go/v4"

	"github.com/qubitrhythm/disensor/internal/geo"
)

// CellID is a hexagonal cell index.
type CellID = h3.Cell

func cellFor(ll geo.LatLng, resolution int) (CellID, error) {
	return h3.LatLngToCell(h3.NewLatLng(ll.Lat, ll.Lng), resolution)
}

func cellCenter(c CellID) (geo.LatLng, error) {
	ll, err := c.LatLng()
	if err != nil {
		return geo.LatLng{}, err
	}
	return geo.LatLng{Lat: ll.Lat, Lng: ll.Lng}, nil
}

// cellBoundary returns the cell outline as [lat, lng] pairs.
func cellBoundary(c CellID) ([][2]float64, error) {
	boundary, err := c.Boundary()
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, len(boundary))
	for i, v := range boundary {
		out[i] = [2]float64{v.Lat, v.Lng}
	}
	return out, nil
}
