// Package decay implements bid-decay arithmetic for the shared code cache.
// Bids lose value linearly at the chain's decay rate (units per second); a
// bid's effective value is what remains after the elapsed decay.
package decay

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/faults"
)

// EffectiveBid returns the remaining value of bid after linear decay between
// start and end. Elapsed time is floored to whole seconds and a window that
// ends before it starts counts as zero. The result never goes below zero.
func EffectiveBid(start, end time.Time, bid, rate decimal.Decimal) (decimal.Decimal, error) {
	if err := requireAmount("bid", bid); err != nil {
		return decimal.Zero, err
	}
	if err := requireAmount("decay rate", rate); err != nil {
		return decimal.Zero, err
	}

	elapsed := int64(end.Sub(start) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	decayAmount := rate.Mul(decimal.NewFromInt(elapsed))
	if decayAmount.Cmp(bid) >= 0 {
		return decimal.Zero, nil
	}
	return bid.Sub(decayAmount), nil
}

// EffectiveBidStrings is the wire-format variant of EffectiveBid: bid and rate
// arrive as decimal-string-encoded unbounded integers.
func EffectiveBidStrings(start, end time.Time, bid, rate string) (decimal.Decimal, error) {
	bidDec, err := ParseAmount(bid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bid: %w", err)
	}
	rateDec, err := ParseAmount(rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decay rate: %w", err)
	}
	return EffectiveBid(start, end, bidDec, rateDec)
}

// ParseAmount parses a decimal-string-encoded non-negative integer amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed amount %q", faults.ErrInvalidInput, s)
	}
	if err := requireAmount("amount", d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func requireAmount(name string, d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", faults.ErrInvalidInput, name)
	}
	if !d.IsInteger() {
		return fmt.Errorf("%w: %s must be a whole number of units", faults.ErrInvalidInput, name)
	}
	return nil
}
