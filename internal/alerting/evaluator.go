// Package alerting evaluates alert trigger conditions and drives the two
// entry points that emit trigger jobs: the periodic bid-safety sweep and
// event-triggered eviction processing.
package alerting

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/chain"
	"bid-risk-alerts/internal/decay"
	"bid-risk-alerts/internal/faults"
	"bid-risk-alerts/internal/storage"
)

// basisPointScale carries the percentage margin at four implied decimals:
// a margin of 5% becomes 10500 over 10000.
var basisPointScale = big.NewInt(10_000)

// Evaluator tests a single alert's trigger condition. Unlike the risk
// engine's degrade-to-default policy, evaluation errors propagate: silently
// returning "safe" would suppress a real alert.
type Evaluator struct {
	rates  *decay.Resolver
	logger zerolog.Logger
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(rates *decay.Resolver, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		rates:  rates,
		logger: logger.With().Str("component", "alert_evaluator").Logger(),
	}
}

// BidSafetyBreached reports whether the alert's contract has fallen below its
// configured safety margin over the chain's minimum bid. The threshold is
// minBid scaled by (10000 + margin basis points) / 10000 in exact integer
// arithmetic; the condition is a strict effectiveBid < threshold.
func (e *Evaluator) BidSafetyBreached(ctx context.Context, reader chain.Reader, alert storage.BidSafetyAlert, now time.Time) (bool, error) {
	margin, err := parseMarginBasisPoints(alert.Value)
	if err != nil {
		return false, fmt.Errorf("alert %s: %w", alert.ID, err)
	}

	minBid, err := reader.MinBidForAddress(ctx, alert.ContractAddress)
	if err != nil {
		return false, fmt.Errorf("alert %s: min bid for %s: %w", alert.ID, alert.ContractAddress, err)
	}

	rate := e.rates.RateAt(ctx, alert.BlockchainID, now)
	effective, err := decay.EffectiveBid(alert.Bytecode.BidTimestamp, now, alert.Bytecode.LastBid, rate)
	if err != nil {
		return false, fmt.Errorf("alert %s: %w", alert.ID, err)
	}

	numerator := new(big.Int).Add(basisPointScale, margin)
	threshold := new(big.Int).Mul(minBid.BigInt(), numerator)
	threshold.Quo(threshold, basisPointScale)

	breached := effective.BigInt().Cmp(threshold) < 0
	e.logger.Debug().
		Str("alert_id", alert.ID).
		Str("effective_bid", effective.String()).
		Str("threshold", threshold.String()).
		Bool("breached", breached).
		Msg("bid safety evaluated")
	return breached, nil
}

// parseMarginBasisPoints converts a percentage margin with up to two decimal
// digits (e.g. "5" or "2.75") into basis points (500, 275).
func parseMarginBasisPoints(value string) (*big.Int, error) {
	margin, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed margin %q", faults.ErrInvalidInput, value)
	}
	if margin.IsNegative() {
		return nil, fmt.Errorf("%w: margin must not be negative", faults.ErrInvalidInput)
	}

	bps := margin.Mul(decimal.NewFromInt(100))
	if !bps.IsInteger() {
		return nil, fmt.Errorf("%w: margin %q has more than two decimal digits", faults.ErrInvalidInput, value)
	}
	return bps.BigInt(), nil
}
