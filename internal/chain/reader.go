// Package chain reads the on-chain cache manager contract: minimum viable
// bids, the live decay rate, and the current cache contents.
package chain

import (
	"context"

	"github.com/shopspring/decimal"
)

// CacheEntry is one cached bytecode as reported by the cache manager.
type CacheEntry struct {
	CodeHash  string
	SizeBytes uint64
	Bid       decimal.Decimal
}

// Reader exposes the cache manager's read-only views for one chain.
type Reader interface {
	// MinBidForSize returns the minimum bid required to cache code of the
	// given byte size (used for code not yet in the cache).
	MinBidForSize(ctx context.Context, sizeBytes uint64) (decimal.Decimal, error)
	// MinBidForAddress returns the minimum bid keyed by a deployed program
	// address.
	MinBidForAddress(ctx context.Context, address string) (decimal.Decimal, error)
	// DecayRate returns the current per-second bid decay rate.
	DecayRate(ctx context.Context) (decimal.Decimal, error)
	// CacheCapacityBytes returns the cache's total capacity.
	CacheCapacityBytes(ctx context.Context) (uint64, error)
	// UsedCacheBytes returns the bytes currently occupied.
	UsedCacheBytes(ctx context.Context) (uint64, error)
	// ListCacheEntries returns the full entry list.
	ListCacheEntries(ctx context.Context) ([]CacheEntry, error)
}
