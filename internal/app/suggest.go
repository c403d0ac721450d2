package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"bid-risk-alerts/internal/risk"
)

// SuggestOptions configure a one-shot bid suggestion. Exactly one of
// SizeBytes or Address selects the lookup mode.
type SuggestOptions struct {
	ChainID   int64
	SizeBytes uint64
	Address   string
}

// Suggest prints suggested bids at the three tolerance tiers for the given
// code size or deployed program address.
func (a *App) Suggest(ctx context.Context, opts SuggestOptions) error {
	if (opts.SizeBytes == 0) == (opts.Address == "") {
		return fmt.Errorf("exactly one of --size or --address must be provided")
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

	engine := a.newEngine(store)

	var suggestion risk.Suggestion
	if opts.Address != "" {
		suggestion, err = engine.SuggestedBidsForAddress(ctx, reader, bc.ID, opts.Address)
	} else {
		suggestion, err = engine.SuggestedBidsForSize(ctx, reader, bc.ID, opts.SizeBytes)
	}
	if err != nil {
		return err
	}

	printSuggestion(bc.Name, suggestion)
	return nil
}

func printSuggestion(chainName string, s risk.Suggestion) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Chain\t%s\n", chainName)
	if s.Degraded {
		fmt.Fprintf(writer, "Status\tdegraded (%v)\n", s.Cause)
	} else {
		fmt.Fprintln(writer, "Status\tok")
	}
	fmt.Fprintf(writer, "High risk bid\t%s\n", s.Bids.High.String())
	fmt.Fprintf(writer, "Mid risk bid\t%s\n", s.Bids.Mid.String())
	fmt.Fprintf(writer, "Low risk bid\t%s\n", s.Bids.Low.String())
	fmt.Fprintf(writer, "Cache utilization\t%s\n", formatRatio(s.CacheStats.Utilization))
	fmt.Fprintf(writer, "Evictions per day\t%s\n", formatRatio(s.CacheStats.EvictionRate))
	fmt.Fprintf(writer, "Median bid per byte\t%s\n", s.CacheStats.MedianBidPerByte.String())
	fmt.Fprintf(writer, "Competitiveness\t%s\n", formatRatio(s.CacheStats.Competitiveness))
	writer.Flush()
}

func formatRatio(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
