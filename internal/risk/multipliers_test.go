package risk

import (
	"testing"

	"bid-risk-alerts/internal/stats"
)

func TestDynamicMultipliersBaseline(t *testing.T) {
	m := DynamicMultipliers(stats.Stats{})
	if m.High != 1.0 || m.Mid != 1.5 || m.Low != 2.5 {
		t.Fatalf("baseline multipliers = %+v, want {1.0 1.5 2.5}", m)
	}
}

func TestDynamicMultipliersOrdering(t *testing.T) {
	cases := []stats.Stats{
		{},
		{Utilization: 0.5},
		{EvictionRate: 3},
		{EvictionRate: 100},
		{Competitiveness: 1},
		{Utilization: 1, EvictionRate: 100, Competitiveness: 1},
		{Utilization: 0.33, EvictionRate: 2.5, Competitiveness: 0.17},
	}
	for _, st := range cases {
		m := DynamicMultipliers(st)
		if !(m.High <= m.Mid && m.Mid <= m.Low) {
			t.Fatalf("ordering violated for %+v: %+v", st, m)
		}
		if m.Mid < 1.5 || m.Low < 2.5 {
			t.Fatalf("adjustment shrank a base multiplier for %+v: %+v", st, m)
		}
	}
}

func TestDynamicMultipliersEvictionFactorCapped(t *testing.T) {
	// the eviction factor saturates once the rate reaches 5/day
	atCap := DynamicMultipliers(stats.Stats{EvictionRate: 5})
	beyond := DynamicMultipliers(stats.Stats{EvictionRate: 5000})
	if beyond.Mid != atCap.Mid || beyond.Low != atCap.Low {
		t.Fatalf("eviction factor not capped: rate=5 gives %+v, rate=5000 gives %+v", atCap, beyond)
	}
}
