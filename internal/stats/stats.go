// Package stats derives cache-health metrics from the live cache contents and
// the recorded eviction history. Its output is the sole "how hot is the cache
// right now" signal consumed by risk scaling.
package stats

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/chain"
	"bid-risk-alerts/internal/faults"
)

// Evictions in the trailing week feed the eviction rate.
const (
	evictionWindow     = 7 * 24 * time.Hour
	evictionWindowDays = 7
)

// CacheReader is the slice of the chain reader the analyzer needs.
type CacheReader interface {
	CacheCapacityBytes(ctx context.Context) (uint64, error)
	UsedCacheBytes(ctx context.Context) (uint64, error)
	ListCacheEntries(ctx context.Context) ([]chain.CacheEntry, error)
}

// EvictionLog counts recorded cache evictions for a chain.
type EvictionLog interface {
	CountEvictionsSince(ctx context.Context, blockchainID string, since time.Time) (int64, error)
}

// Stats is a point-in-time cache health summary. When Degraded is set the
// numeric fields hold conservative zero defaults and Cause records the
// upstream failure, so callers can tell an outage apart from a cold cache.
type Stats struct {
	Utilization      float64
	EvictionRate     float64
	MedianBidPerByte decimal.Decimal
	Competitiveness  float64
	CapacityBytes    uint64
	UsedBytes        uint64
	MinBid           decimal.Decimal

	Degraded bool
	Cause    error
}

// Analyzer computes cache statistics.
type Analyzer struct {
	evictions EvictionLog
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(evictions EvictionLog, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		evictions: evictions,
		logger:    logger.With().Str("component", "cache_stats").Logger(),
		now:       time.Now,
	}
}

// CacheStatistics reads the cache snapshot and the trailing eviction window
// and derives utilization, median bid density, eviction rate, and
// competitiveness. Upstream failure yields a Degraded result rather than an
// error so sweep-style callers stay resilient.
func (a *Analyzer) CacheStatistics(ctx context.Context, reader CacheReader, blockchainID string, minBid decimal.Decimal) Stats {
	capacity, err := reader.CacheCapacityBytes(ctx)
	if err != nil {
		return a.degraded(blockchainID, minBid, fmt.Errorf("cache capacity: %w", err))
	}
	used, err := reader.UsedCacheBytes(ctx)
	if err != nil {
		return a.degraded(blockchainID, minBid, fmt.Errorf("used cache bytes: %w", err))
	}
	entries, err := reader.ListCacheEntries(ctx)
	if err != nil {
		return a.degraded(blockchainID, minBid, fmt.Errorf("list cache entries: %w", err))
	}
	evictions, err := a.evictions.CountEvictionsSince(ctx, blockchainID, a.now().Add(-evictionWindow))
	if err != nil {
		return a.degraded(blockchainID, minBid, fmt.Errorf("count evictions: %w", err))
	}

	utilization := 0.0
	if capacity > 0 {
		utilization = float64(used) / float64(capacity)
	}

	evictionRate := float64(evictions) / float64(evictionWindowDays)
	competitiveness := math.Min(1, evictionRate/5*utilization)

	return Stats{
		Utilization:      utilization,
		EvictionRate:     evictionRate,
		MedianBidPerByte: medianBidPerByte(entries),
		Competitiveness:  competitiveness,
		CapacityBytes:    capacity,
		UsedBytes:        used,
		MinBid:           minBid,
	}
}

func (a *Analyzer) degraded(blockchainID string, minBid decimal.Decimal, cause error) Stats {
	a.logger.Warn().Err(cause).Str("blockchain_id", blockchainID).
		Msg("cache statistics degraded to zero defaults")
	if cause != nil {
		cause = fmt.Errorf("%w: %v", faults.ErrUpstreamUnavailable, cause)
	}
	return Stats{MinBid: minBid, Degraded: true, Cause: cause}
}

// medianBidPerByte computes the median of per-entry bid density. Densities
// use integer division; the median of an even count is the mean of the two
// central values. Entries with zero size are skipped.
func medianBidPerByte(entries []chain.CacheEntry) decimal.Decimal {
	densities := make([]*big.Int, 0, len(entries))
	for _, e := range entries {
		if e.SizeBytes == 0 {
			continue
		}
		size := new(big.Int).SetUint64(e.SizeBytes)
		densities = append(densities, new(big.Int).Quo(e.Bid.BigInt(), size))
	}
	if len(densities) == 0 {
		return decimal.Zero
	}

	sort.Slice(densities, func(i, j int) bool { return densities[i].Cmp(densities[j]) < 0 })

	mid := len(densities) / 2
	if len(densities)%2 == 1 {
		return decimal.NewFromBigInt(densities[mid], 0)
	}
	lower := decimal.NewFromBigInt(densities[mid-1], 0)
	upper := decimal.NewFromBigInt(densities[mid], 0)
	return decimal.Avg(lower, upper)
}
