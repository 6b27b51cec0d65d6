package hexgrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		nodes      int
		multiplier float64
		tier       Tier
	}{
		{0, 1.0, TierNormal},
		{1, 2.0, TierDiscovery},
		{2, 1.0, TierNormal},
		{5, 1.0, TierNormal},
		{6, 0.5, TierSaturation},
		{100, 0.5, TierSaturation},
	}

	for _, tt := range tests {
		z := Classify(tt.nodes)
		assert.Equal(t, tt.multiplier, z.Multiplier, "nodes=%d", tt.nodes)
		assert.Equal(t, tt.tier, z.Tier, "nodes=%d", tt.nodes)
	}
}

func TestClassifyStyles(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "#10b981", Classify(1).Color)
	assert.Equal(t, "#f59e0b", Classify(3).Color)
	assert.Equal(t, "#ef4444", Classify(9).Color)
	assert.Equal(t, 0.5, Classify(9).Opacity)
}
