package decay

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bid-risk-alerts/internal/faults"
)

func TestEffectiveBidLinearDecay(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	got, err := EffectiveBid(start, end, decimal.NewFromInt(1_000_000), decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("EffectiveBid: %v", err)
	}
	if want := decimal.NewFromInt(640_000); !got.Equal(want) {
		t.Fatalf("effective bid = %s, want %s", got, want)
	}
}

func TestEffectiveBidClampsToZero(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)

	got, err := EffectiveBid(start, end, decimal.NewFromInt(1_000_000), decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("EffectiveBid: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("effective bid = %s, want 0", got)
	}
}

func TestEffectiveBidFlooredSeconds(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)

	got, err := EffectiveBid(start, end, decimal.NewFromInt(100), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("EffectiveBid: %v", err)
	}
	if want := decimal.NewFromInt(90); !got.Equal(want) {
		t.Fatalf("effective bid = %s, want %s (1.5s floors to one second of decay)", got, want)
	}
}

func TestEffectiveBidNegativeWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(-time.Minute)

	got, err := EffectiveBid(start, end, decimal.NewFromInt(500), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("EffectiveBid: %v", err)
	}
	if want := decimal.NewFromInt(500); !got.Equal(want) {
		t.Fatalf("effective bid = %s, want %s (no decay before the bid was placed)", got, want)
	}
}

func TestEffectiveBidZeroRate(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got, err := EffectiveBid(start, start.Add(48*time.Hour), decimal.NewFromInt(777), decimal.Zero)
	if err != nil {
		t.Fatalf("EffectiveBid: %v", err)
	}
	if want := decimal.NewFromInt(777); !got.Equal(want) {
		t.Fatalf("effective bid = %s, want %s", got, want)
	}
}

func TestEffectiveBidRejectsNegativeInputs(t *testing.T) {
	start := time.Now()
	if _, err := EffectiveBid(start, start, decimal.NewFromInt(-1), decimal.Zero); !errors.Is(err, faults.ErrInvalidInput) {
		t.Fatalf("negative bid: err = %v, want ErrInvalidInput", err)
	}
	if _, err := EffectiveBid(start, start, decimal.Zero, decimal.NewFromInt(-5)); !errors.Is(err, faults.ErrInvalidInput) {
		t.Fatalf("negative rate: err = %v, want ErrInvalidInput", err)
	}
}

func TestEffectiveBidStrings(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	got, err := EffectiveBidStrings(start, end, "340282366920938463463374607431768211456", "1")
	if err != nil {
		t.Fatalf("EffectiveBidStrings: %v", err)
	}
	want, _ := decimal.NewFromString("340282366920938463463374607431768207856")
	if !got.Equal(want) {
		t.Fatalf("effective bid = %s, want %s", got, want)
	}

	if _, err := EffectiveBidStrings(start, end, "not-a-number", "0"); !errors.Is(err, faults.ErrInvalidInput) {
		t.Fatalf("malformed bid: err = %v, want ErrInvalidInput", err)
	}
	if _, err := EffectiveBidStrings(start, end, "10", "1.5"); !errors.Is(err, faults.ErrInvalidInput) {
		t.Fatalf("fractional rate: err = %v, want ErrInvalidInput", err)
	}
}
