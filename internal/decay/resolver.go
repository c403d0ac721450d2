package decay

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RateSource supplies persisted decay-rate observations for a chain.
type RateSource interface {
	// LatestDecayRateEventBefore returns the rate from the most recent
	// decay-rate-change event at or before the given instant.
	LatestDecayRateEventBefore(ctx context.Context, blockchainID string, at time.Time) (decimal.Decimal, bool, error)
	// LatestStateDecayRate returns the rate from the newest periodic chain
	// state snapshot, ordered by block number.
	LatestStateDecayRate(ctx context.Context, blockchainID string) (decimal.Decimal, bool, error)
}

// Resolver looks up the decay rate in force at a point in time. Rate-change
// events are only emitted on actual changes, so a chain with no events yet
// falls back to the latest periodic snapshot, then to zero.
type Resolver struct {
	source RateSource
	logger zerolog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(source RateSource, logger zerolog.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger.With().Str("component", "decay_resolver").Logger(),
	}
}

// RateAt resolves the decay rate applicable at the given instant. It never
// fails: a missing or unreadable source degrades to a rate of zero, which
// overstates the remaining effective bid and is the conservative choice for
// suggesting bids.
func (r *Resolver) RateAt(ctx context.Context, blockchainID string, at time.Time) decimal.Decimal {
	rate, ok, err := r.source.LatestDecayRateEventBefore(ctx, blockchainID, at)
	if err != nil {
		r.logger.Warn().Err(err).Str("blockchain_id", blockchainID).
			Msg("decay-rate event lookup failed; trying state snapshot")
	} else if ok {
		return rate
	}

	rate, ok, err = r.source.LatestStateDecayRate(ctx, blockchainID)
	if err != nil {
		r.logger.Warn().Err(err).Str("blockchain_id", blockchainID).
			Msg("state snapshot lookup failed; defaulting decay rate to zero")
		return decimal.Zero
	}
	if !ok {
		r.logger.Debug().Str("blockchain_id", blockchainID).
			Msg("no decay-rate data recorded; defaulting to zero")
		return decimal.Zero
	}
	return rate
}
