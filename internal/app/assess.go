package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"bid-risk-alerts/internal/chain"
	"bid-risk-alerts/internal/faults"
	"bid-risk-alerts/internal/risk"
	"bid-risk-alerts/internal/storage"
)

// AssessOptions configure a batch eviction-risk assessment.
type AssessOptions struct {
	ChainID   int64
	Addresses []string
}

type assessResult struct {
	address    string
	assessment risk.Assessment
	err        error
}

// Assess evaluates eviction risk for one or more deployed contracts and
// prints a verdict per address. Per-address failures are reported inline so
// one unknown contract does not hide the rest of the batch.
func (a *App) Assess(ctx context.Context, opts AssessOptions) error {
	if len(opts.Addresses) == 0 {
		return errors.New("at least one --address must be provided")
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

	results := make([]assessResult, len(opts.Addresses))
	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(a.Config.Assess.Concurrency)
	for i, address := range opts.Addresses {
		group.Go(func() error {
			assessment, err := a.assessOne(gctx, store, engine, reader, bc, address)
			mu.Lock()
			results[i] = assessResult{address: address, assessment: assessment, err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	printAssessments(bc.Name, results)
	return nil
}

func (a *App) assessOne(ctx context.Context, store *storage.Store, engine *risk.Engine, reader chain.Reader, bc storage.Blockchain, address string) (risk.Assessment, error) {
	contract, err := store.GetContractWithBytecode(ctx, bc.ID, address)
	if err != nil {
		if faults.IsNotFound(err) {
			return risk.Assessment{}, fmt.Errorf("contract %s is not registered on %s", address, bc.Name)
		}
		return risk.Assessment{}, err
	}
	return engine.EvictionRisk(ctx, reader, contract.Bytecode)
}

func printAssessments(chainName string, results []assessResult) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Chain: %s\n", chainName)
	fmt.Fprintln(writer, "Address\tRisk\tEffective bid\tvs High\tvs Mid\tvs Low\tStatus")

	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(writer, "%s\t-\t-\t-\t-\t-\t%v\n", r.address, r.err)
			continue
		}
		status := "ok"
		if r.assessment.Degraded {
			status = fmt.Sprintf("degraded (%v)", r.assessment.Cause)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s%%\t%s%%\t%s%%\t%s\n",
			r.address,
			r.assessment.Level,
			r.assessment.EffectiveBid.String(),
			r.assessment.VsHigh.StringFixed(2),
			r.assessment.VsMid.StringFixed(2),
			r.assessment.VsLow.StringFixed(2),
			status,
		)
	}

	writer.Flush()
}
