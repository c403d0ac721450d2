package app

import (
	"context"

	"bid-risk-alerts/internal/alerting"
)

// TriggerEventOptions identify one persisted cache manager event.
type TriggerEventOptions struct {
	ChainID int64
	EventID string
}

// TriggerEvent replays a persisted chain event through the alert processor,
// fanning evictions out to their matching alerts. The ingestion pipeline
// calls the same path when a new event lands.
func (a *App) TriggerEvent(ctx context.Context, opts TriggerEventOptions) error {
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

	bc, err := store.GetBlockchainByChainID(ctx, opts.ChainID)
	if err != nil {
		return err
	}

	processor := alerting.NewProcessor(store, jobs, nil, a.Logger)
	return processor.ProcessBlockchainEvent(ctx, bc.ID, opts.EventID)
}
