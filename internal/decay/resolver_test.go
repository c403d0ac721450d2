package decay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type stubRateSource struct {
	eventRate    decimal.Decimal
	eventFound   bool
	eventErr     error
	snapshotRate decimal.Decimal
	snapFound    bool
	snapErr      error
}

func (s *stubRateSource) LatestDecayRateEventBefore(ctx context.Context, blockchainID string, at time.Time) (decimal.Decimal, bool, error) {
	return s.eventRate, s.eventFound, s.eventErr
}

func (s *stubRateSource) LatestStateDecayRate(ctx context.Context, blockchainID string) (decimal.Decimal, bool, error) {
	return s.snapshotRate, s.snapFound, s.snapErr
}

func TestRateAtPrefersEvent(t *testing.T) {
	src := &stubRateSource{
		eventRate:    decimal.NewFromInt(42),
		eventFound:   true,
		snapshotRate: decimal.NewFromInt(7),
		snapFound:    true,
	}
	r := NewResolver(src, zerolog.Nop())

	got := r.RateAt(context.Background(), "chain-1", time.Now())
	if want := decimal.NewFromInt(42); !got.Equal(want) {
		t.Fatalf("rate = %s, want %s", got, want)
	}
}

func TestRateAtFallsBackToSnapshot(t *testing.T) {
	src := &stubRateSource{snapshotRate: decimal.NewFromInt(7), snapFound: true}
	r := NewResolver(src, zerolog.Nop())

	got := r.RateAt(context.Background(), "chain-1", time.Now())
	if want := decimal.NewFromInt(7); !got.Equal(want) {
		t.Fatalf("rate = %s, want %s", got, want)
	}
}

func TestRateAtDefaultsToZero(t *testing.T) {
	r := NewResolver(&stubRateSource{}, zerolog.Nop())

	if got := r.RateAt(context.Background(), "chain-1", time.Now()); !got.IsZero() {
		t.Fatalf("rate = %s, want 0", got)
	}
}

func TestRateAtSurvivesSourceErrors(t *testing.T) {
	src := &stubRateSource{
		eventErr: errors.New("db down"),
		snapErr:  errors.New("db down"),
	}
	r := NewResolver(src, zerolog.Nop())

	if got := r.RateAt(context.Background(), "chain-1", time.Now()); !got.IsZero() {
		t.Fatalf("rate = %s, want 0 on total source failure", got)
	}
}

func TestRateAtEventErrorFallsThrough(t *testing.T) {
	src := &stubRateSource{
		eventErr:     errors.New("query timeout"),
		snapshotRate: decimal.NewFromInt(11),
		snapFound:    true,
	}
	r := NewResolver(src, zerolog.Nop())

	got := r.RateAt(context.Background(), "chain-1", time.Now())
	if want := decimal.NewFromInt(11); !got.Equal(want) {
		t.Fatalf("rate = %s, want %s", got, want)
	}
}
