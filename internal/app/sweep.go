package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bid-risk-alerts/internal/alerting"
	"bid-risk-alerts/internal/decay"
	"bid-risk-alerts/internal/metrics"
)

// SweepOnce runs a single bid-safety pass over every enabled blockchain and
// returns once the pass completes. Useful for cron-style deployments and for
// verifying alert configuration by hand.
func (a *App) SweepOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	jobs, closeQueue, err := a.openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	pool := a.newChainPool()
	defer pool.Close()

	m := metrics.New(prometheus.NewRegistry())
	resolver := decay.NewResolver(store, a.Logger)
	evaluator := alerting.NewEvaluator(resolver, a.Logger)
	sweeper := alerting.NewSweeper(store, pool, evaluator, jobs, store, m, alerting.SweeperOptions{
		AdvisoryLockKey: a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)

	return sweeper.Sweep(ctx, time.Now().UTC())
}
