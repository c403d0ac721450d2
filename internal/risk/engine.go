package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/chain"
	"bid-risk-alerts/internal/decay"
	"bid-risk-alerts/internal/faults"
	"bid-risk-alerts/internal/stats"
	"bid-risk-alerts/internal/storage"
)

// Level classifies how close a cached contract is to eviction.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// SuggestedBids is the recommendation envelope for the three tolerance tiers.
// High equals the bare minimum bid.
type SuggestedBids struct {
	High decimal.Decimal
	Mid  decimal.Decimal
	Low  decimal.Decimal
}

// Suggestion carries suggested bids together with the statistics they were
// derived from. Degraded marks results built on zero defaults after an
// upstream failure; Cause records why.
type Suggestion struct {
	Bids       SuggestedBids
	CacheStats stats.Stats
	Degraded   bool
	Cause      error
}

// Assessment is the full eviction-risk verdict for one cached contract.
// Ephemeral: computed per request, never persisted.
type Assessment struct {
	Level        Level
	EffectiveBid decimal.Decimal
	Suggested    SuggestedBids
	VsHigh       decimal.Decimal
	VsMid        decimal.Decimal
	VsLow        decimal.Decimal
	CacheStats   stats.Stats
	Degraded     bool
	Cause        error
}

// Engine composes decay arithmetic, cache statistics, and dynamic multipliers
// into bid suggestions and risk classifications.
type Engine struct {
	analyzer *stats.Analyzer
	rates    *decay.Resolver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(analyzer *stats.Analyzer, rates *decay.Resolver, logger zerolog.Logger) *Engine {
	return &Engine{
		analyzer: analyzer,
		rates:    rates,
		logger:   logger.With().Str("component", "bid_engine").Logger(),
		now:      time.Now,
	}
}

// SuggestedBidsForSize recommends bids for code of the given size that is not
// yet cached.
func (e *Engine) SuggestedBidsForSize(ctx context.Context, reader chain.Reader, blockchainID string, sizeBytes uint64) (Suggestion, error) {
	if sizeBytes == 0 {
		return Suggestion{}, fmt.Errorf("%w: code size must be greater than zero", faults.ErrInvalidInput)
	}
	minBid, err := reader.MinBidForSize(ctx, sizeBytes)
	if err != nil {
		return e.degradedSuggestion(blockchainID, err), nil
	}
	return e.suggest(ctx, reader, blockchainID, minBid), nil
}

// SuggestedBidsForAddress recommends bids keyed by a deployed program address.
func (e *Engine) SuggestedBidsForAddress(ctx context.Context, reader chain.Reader, blockchainID, address string) (Suggestion, error) {
	minBid, err := reader.MinBidForAddress(ctx, address)
	if err != nil {
		if faults.IsInvalidInput(err) {
			return Suggestion{}, err
		}
		return e.degradedSuggestion(blockchainID, err), nil
	}
	return e.suggest(ctx, reader, blockchainID, minBid), nil
}

func (e *Engine) suggest(ctx context.Context, reader chain.Reader, blockchainID string, minBid decimal.Decimal) Suggestion {
	st := e.analyzer.CacheStatistics(ctx, reader, blockchainID, minBid)
	if st.Degraded {
		return Suggestion{CacheStats: st, Degraded: true, Cause: st.Cause}
	}

	m := DynamicMultipliers(st)
	return Suggestion{
		Bids: SuggestedBids{
			High: minBid,
			Mid:  scaleBid(minBid, m.Mid),
			Low:  scaleBid(minBid, m.Low),
		},
		CacheStats: st,
	}
}

// EvictionRisk classifies how close a cached contract's decayed bid sits to
// the current recommendation envelope. Code outside the cache has no eviction
// risk, only a suggested entry bid, so a non-cached record is an error.
// Upstream failure degrades to an all-zero high-risk verdict with the cause
// attached instead of propagating, keeping sweep-style callers resilient.
func (e *Engine) EvictionRisk(ctx context.Context, reader chain.Reader, code storage.BytecodeState) (Assessment, error) {
	if !code.IsCached {
		return Assessment{}, fmt.Errorf("%w: bytecode %s is not cached", faults.ErrCalculationFailure, code.BytecodeHash)
	}
	if code.SizeBytes == 0 {
		return Assessment{}, fmt.Errorf("%w: bytecode %s has no recorded size", faults.ErrCalculationFailure, code.BytecodeHash)
	}

	now := e.now()
	rate := e.rates.RateAt(ctx, code.BlockchainID, now)

	effective, err := decay.EffectiveBid(code.BidTimestamp, now, code.LastBid, rate)
	if err != nil {
		return Assessment{}, err
	}

	suggestion, err := e.SuggestedBidsForSize(ctx, reader, code.BlockchainID, code.SizeBytes)
	if err != nil {
		return Assessment{}, err
	}
	if suggestion.Degraded {
		e.logger.Warn().Err(suggestion.Cause).Str("bytecode_hash", code.BytecodeHash).
			Msg("eviction risk degraded to high after upstream failure")
		return Assessment{
			Level:      LevelHigh,
			CacheStats: suggestion.CacheStats,
			Degraded:   true,
			Cause:      suggestion.Cause,
		}, nil
	}

	bids := suggestion.Bids
	return Assessment{
		Level:        classify(effective, bids),
		EffectiveBid: effective,
		Suggested:    bids,
		VsHigh:       Percentage(effective, bids.High),
		VsMid:        Percentage(effective, bids.Mid),
		VsLow:        Percentage(effective, bids.Low),
		CacheStats:   suggestion.CacheStats,
	}, nil
}

func (e *Engine) degradedSuggestion(blockchainID string, cause error) Suggestion {
	e.logger.Warn().Err(cause).Str("blockchain_id", blockchainID).
		Msg("bid suggestion degraded to zero defaults")
	return Suggestion{
		CacheStats: stats.Stats{Degraded: true, Cause: cause},
		Degraded:   true,
		Cause:      cause,
	}
}

// classify buckets the effective bid against the suggested tiers. Bids between
// the bare minimum and the mid tier still classify as high: the mid tier is
// the first boundary treated as safe.
func classify(effective decimal.Decimal, bids SuggestedBids) Level {
	switch {
	case effective.Cmp(bids.High) < 0:
		return LevelHigh
	case effective.Cmp(bids.Mid) < 0:
		return LevelHigh
	case effective.Cmp(bids.Low) < 0:
		return LevelMedium
	default:
		return LevelLow
	}
}

func scaleBid(minBid decimal.Decimal, multiplier float64) decimal.Decimal {
	return minBid.Mul(decimal.NewFromFloat(multiplier)).Floor()
}
