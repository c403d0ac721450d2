package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/chain"
	"bid-risk-alerts/internal/decay"
	"bid-risk-alerts/internal/faults"
	"bid-risk-alerts/internal/storage"
)

type stubReader struct {
	minBid decimal.Decimal
	err    error
}

func (s *stubReader) MinBidForSize(ctx context.Context, sizeBytes uint64) (decimal.Decimal, error) {
	return s.minBid, s.err
}

func (s *stubReader) MinBidForAddress(ctx context.Context, address string) (decimal.Decimal, error) {
	return s.minBid, s.err
}

func (s *stubReader) DecayRate(ctx context.Context) (decimal.Decimal, error) {
	return decimal.Zero, s.err
}

func (s *stubReader) CacheCapacityBytes(ctx context.Context) (uint64, error) { return 0, s.err }

func (s *stubReader) UsedCacheBytes(ctx context.Context) (uint64, error) { return 0, s.err }

func (s *stubReader) ListCacheEntries(ctx context.Context) ([]chain.CacheEntry, error) {
	return nil, s.err
}

type zeroRates struct{}

func (zeroRates) LatestDecayRateEventBefore(ctx context.Context, blockchainID string, at time.Time) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func (zeroRates) LatestStateDecayRate(ctx context.Context, blockchainID string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func newEvaluator() *Evaluator {
	return NewEvaluator(decay.NewResolver(zeroRates{}, zerolog.Nop()), zerolog.Nop())
}

func bidSafetyAlert(id, value string, lastBid int64, bidAt time.Time) storage.BidSafetyAlert {
	return storage.BidSafetyAlert{
		Alert: storage.Alert{
			ID:           id,
			Type:         storage.AlertBidSafety,
			Value:        value,
			IsActive:     true,
			BlockchainID: "chain-1",
		},
		ContractAddress: "0x00000000000000000000000000000000000000aa",
		Bytecode: storage.BytecodeState{
			BytecodeHash: "0xabc",
			SizeBytes:    100,
			LastBid:      decimal.NewFromInt(lastBid),
			BidTimestamp: bidAt,
			IsCached:     true,
			BlockchainID: "chain-1",
		},
	}
}

func TestBidSafetyBreachedStrictThreshold(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reader := &stubReader{minBid: decimal.NewFromInt(1000)}
	e := newEvaluator()

	// margin 5% over minBid 1000 puts the threshold at 1050
	breached, err := e.BidSafetyBreached(context.Background(), reader, bidSafetyAlert("a1", "5", 1049, now), now)
	if err != nil {
		t.Fatalf("BidSafetyBreached: %v", err)
	}
	if !breached {
		t.Fatal("effective bid 1049 under threshold 1050 should breach")
	}

	breached, err = e.BidSafetyBreached(context.Background(), reader, bidSafetyAlert("a2", "5", 1050, now), now)
	if err != nil {
		t.Fatalf("BidSafetyBreached: %v", err)
	}
	if breached {
		t.Fatal("effective bid equal to the threshold must not breach (strict <)")
	}
}

func TestBidSafetyBreachedFractionalMargin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reader := &stubReader{minBid: decimal.NewFromInt(10_000)}
	e := newEvaluator()

	// 2.75% over 10000 -> threshold 10275
	breached, err := e.BidSafetyBreached(context.Background(), reader, bidSafetyAlert("a1", "2.75", 10_274, now), now)
	if err != nil {
		t.Fatalf("BidSafetyBreached: %v", err)
	}
	if !breached {
		t.Fatal("10274 under threshold 10275 should breach")
	}
}

func TestBidSafetyBreachedAppliesDecay(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reader := &stubReader{minBid: decimal.NewFromInt(1000)}

	rates := decay.NewResolver(fixedRates{rate: decimal.NewFromInt(1)}, zerolog.Nop())
	e := NewEvaluator(rates, zerolog.Nop())

	// placed 100s ago at 1100, decaying 1/s -> effective 1000 < 1050
	alert := bidSafetyAlert("a1", "5", 1100, now.Add(-100*time.Second))
	breached, err := e.BidSafetyBreached(context.Background(), reader, alert, now)
	if err != nil {
		t.Fatalf("BidSafetyBreached: %v", err)
	}
	if !breached {
		t.Fatal("decayed bid under the threshold should breach")
	}
}

type fixedRates struct {
	rate decimal.Decimal
}

func (f fixedRates) LatestDecayRateEventBefore(ctx context.Context, blockchainID string, at time.Time) (decimal.Decimal, bool, error) {
	return f.rate, true, nil
}

func (f fixedRates) LatestStateDecayRate(ctx context.Context, blockchainID string) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}

func TestBidSafetyBreachedPropagatesChainErrors(t *testing.T) {
	now := time.Now()
	reader := &stubReader{err: errors.New("rpc unreachable")}
	e := newEvaluator()

	_, err := e.BidSafetyBreached(context.Background(), reader, bidSafetyAlert("a1", "5", 1000, now), now)
	if err == nil {
		t.Fatal("chain failure must propagate, never default to safe")
	}
}

func TestBidSafetyBreachedRejectsBadMargin(t *testing.T) {
	now := time.Now()
	reader := &stubReader{minBid: decimal.NewFromInt(1000)}
	e := newEvaluator()

	for _, value := range []string{"abc", "-1", "1.234"} {
		if _, err := e.BidSafetyBreached(context.Background(), reader, bidSafetyAlert("a1", value, 1000, now), now); !errors.Is(err, faults.ErrInvalidInput) {
			t.Fatalf("margin %q: err = %v, want ErrInvalidInput", value, err)
		}
	}
}

func TestParseMarginBasisPoints(t *testing.T) {
	cases := map[string]int64{
		"0":    0,
		"5":    500,
		"2.75": 275,
		"0.01": 1,
		"100":  10000,
	}
	for value, want := range cases {
		got, err := parseMarginBasisPoints(value)
		if err != nil {
			t.Fatalf("parseMarginBasisPoints(%q): %v", value, err)
		}
		if got.Int64() != want {
			t.Fatalf("parseMarginBasisPoints(%q) = %d, want %d", value, got.Int64(), want)
		}
	}
}
