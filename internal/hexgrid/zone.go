package hexgrid

// Tier names a density class of a cell.
type Tier string

const (
	TierDiscovery  Tier = "discovery"
	TierNormal     Tier = "normal"
	TierSaturation Tier = "saturation"
)

// Zone is the reward multiplier and display style derived from a cell's node density.
// It is display metadata only and never feeds into ledger earnings.
type Zone struct {
	Multiplier float64 `json:"multiplier"`
	Tier       Tier    `json:"tier"`
	Color      string  `json:"color"`
	Opacity    float64 `json:"opacity"`
}

var (
	discoveryZone  = Zone{Multiplier: 2.0, Tier: TierDiscovery, Color: "#10b981", Opacity: 0.4}
	normalZone     = Zone{Multiplier: 1.0, Tier: TierNormal, Color: "#f59e0b", Opacity: 0.3}
	saturationZone = Zone{Multiplier: 0.5, Tier: TierSaturation, Color: "#ef4444", Opacity: 0.5}
)

// Classify maps the number of distinct contributing nodes to a zone:
// exactly one node is discovery, two to five is normal, more than five is saturation.
// Zero cannot come out of aggregation and is treated as normal.
func Classify(uniqueNodes int) Zone {
	switch {
	case uniqueNodes == 1:
		return discoveryZone
	case uniqueNodes > 5:
		return saturationZone
	default:
		return normalZone
	}
}
