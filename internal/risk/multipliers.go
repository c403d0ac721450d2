// Package risk turns cache-health statistics into suggested bids and
// eviction-risk classifications.
package risk

import (
	"math"

	"bid-risk-alerts/internal/stats"
)

// Base multipliers per tolerance tier. High always equals the bare minimum
// bid; mid and low scale up with cache pressure.
const (
	baseHighMultiplier = 1.0
	baseMidMultiplier  = 1.5
	baseLowMultiplier  = 2.5
)

// Multipliers holds the factor applied to the minimum bid per risk tier.
type Multipliers struct {
	High float64
	Mid  float64
	Low  float64
}

// DynamicMultipliers scales the mid and low base multipliers by current cache
// pressure. Each adjustment factor is at least 1 and the weights form a convex
// combination, so the combined adjustment is at least 1 and High <= Mid <= Low
// holds for every valid input.
func DynamicMultipliers(s stats.Stats) Multipliers {
	utilizationFactor := 1 + s.Utilization
	evictionFactor := 1 + math.Min(s.EvictionRate/10, 0.5)
	competitivenessFactor := 1 + s.Competitiveness

	adjustment := 0.5*utilizationFactor + 0.3*evictionFactor + 0.2*competitivenessFactor

	return Multipliers{
		High: baseHighMultiplier,
		Mid:  baseMidMultiplier * adjustment,
		Low:  baseLowMultiplier * adjustment,
	}
}
