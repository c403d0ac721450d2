package risk

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// percentScale = 100 (percent) * 10^4 (four implied decimal digits).
var percentScale = big.NewInt(1_000_000)

// Percentage returns value as a percentage of baseline, carried with four
// implied decimal digits. The division runs on scaled big integers so
// token-sized magnitudes lose nothing to float rounding. A zero baseline
// yields zero.
func Percentage(value, baseline decimal.Decimal) decimal.Decimal {
	if baseline.IsZero() {
		return decimal.Zero
	}
	scaled := new(big.Int).Mul(value.BigInt(), percentScale)
	quotient := new(big.Int).Quo(scaled, baseline.BigInt())
	return decimal.NewFromBigInt(quotient, -4)
}
