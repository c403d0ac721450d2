package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"bid-risk-alerts/internal/decay"
	"bid-risk-alerts/internal/faults"
)

// ProjectOptions configure a decay projection chart.
type ProjectOptions struct {
	ChainID int64
	Address string
	Hours   int
	PNGPath string
}

// Project renders the projected effective bid of a cached contract over the
// coming hours against the current suggested tiers, so an operator can see
// when the bid will cross each threshold.
func (a *App) Project(ctx context.Context, opts ProjectOptions) error {
	if opts.Address == "" {
		return errors.New("--address must be provided")
	}
	if opts.PNGPath == "" {
		return errors.New("--png must be provided")
	}
	if opts.Hours <= 0 {
		opts.Hours = 24
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pool := a.newChainPool()
	defer pool.Close()

	bc, reader, err := a.resolveChain(ctx, store, pool, opts.ChainID)
	if err != nil {
		return err
	}

	contract, err := store.GetContractWithBytecode(ctx, bc.ID, opts.Address)
	if err != nil {
		return err
	}
	code := contract.Bytecode
	if !code.IsCached {
		return fmt.Errorf("%w: contract %s is not cached; nothing to project", faults.ErrCalculationFailure, opts.Address)
	}

	engine := a.newEngine(store)
	suggestion, err := engine.SuggestedBidsForSize(ctx, reader, bc.ID, code.SizeBytes)
	if err != nil {
		return err
	}
	if suggestion.Degraded {
		return fmt.Errorf("cannot project with degraded cache statistics: %w", suggestion.Cause)
	}

	resolver := decay.NewResolver(store, a.Logger)
	now := time.Now().UTC()
	rate := resolver.RateAt(ctx, bc.ID, now)

	const stepsPerHour = 4
	points := opts.Hours*stepsPerHour + 1
	x := make([]time.Time, points)
	effective := make([]float64, points)
	high := make([]float64, points)
	mid := make([]float64, points)
	low := make([]float64, points)

	for i := 0; i < points; i++ {
		at := now.Add(time.Duration(i) * time.Hour / stepsPerHour)
		bid, err := decay.EffectiveBid(code.BidTimestamp, at, code.LastBid, rate)
		if err != nil {
			return err
		}
		x[i] = at
		effective[i] = bid.InexactFloat64()
		high[i] = suggestion.Bids.High.InexactFloat64()
		mid[i] = suggestion.Bids.Mid.InexactFloat64()
		low[i] = suggestion.Bids.Low.InexactFloat64()
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Bid (wei)",
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: "Effective bid", XValues: x, YValues: effective},
			chart.TimeSeries{Name: "High risk floor", XValues: x, YValues: high},
			chart.TimeSeries{Name: "Mid risk floor", XValues: x, YValues: mid},
			chart.TimeSeries{Name: "Low risk floor", XValues: x, YValues: low},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := ensureDir(opts.PNGPath); err != nil {
		return err
	}
	file, err := os.Create(opts.PNGPath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return err
	}

	a.Logger.Info().Str("path", opts.PNGPath).Int("hours", opts.Hours).
		Str("address", opts.Address).Msg("decay projection rendered")
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
