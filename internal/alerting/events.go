package alerting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"bid-risk-alerts/internal/faults"
	"bid-risk-alerts/internal/metrics"
	"bid-risk-alerts/internal/queue"
	"bid-risk-alerts/internal/storage"
)

// EventKind is the closed set of cache manager events the processor knows
// about. Anything else routes to EventUnhandled and is logged, not dropped
// silently.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventInsertBid
	EventDeleteBid
	EventSetCacheSize
	EventSetDecayRate
	EventPause
	EventUnpause
)

// String returns the kind's label for logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventInsertBid:
		return "InsertBid"
	case EventDeleteBid:
		return "DeleteBid"
	case EventSetCacheSize:
		return "SetCacheSize"
	case EventSetDecayRate:
		return "SetDecayRate"
	case EventPause:
		return "Pause"
	case EventUnpause:
		return "Unpause"
	default:
		return "unhandled"
	}
}

// KindOfEvent maps a persisted event name to its kind.
func KindOfEvent(name string) EventKind {
	switch name {
	case "InsertBid":
		return EventInsertBid
	case "DeleteBid":
		return EventDeleteBid
	case "SetCacheSize":
		return EventSetCacheSize
	case "SetDecayRate":
		return EventSetDecayRate
	case "Pause":
		return EventPause
	case "Unpause":
		return EventUnpause
	default:
		return EventUnhandled
	}
}

// EventSource loads persisted events and the eviction alerts they fan out to.
type EventSource interface {
	GetEvent(ctx context.Context, eventID string) (storage.EventRecord, error)
	ListActiveEvictionAlertIDsByBytecodeHash(ctx context.Context, blockchainID, bytecodeHash string) ([]string, error)
}

// Processor reacts to persisted cache manager events and emits trigger jobs
// for matching alerts.
type Processor struct {
	source  EventSource
	jobs    queue.Enqueuer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewProcessor constructs a Processor. m may be nil.
func NewProcessor(source EventSource, jobs queue.Enqueuer, m *metrics.Metrics, logger zerolog.Logger) *Processor {
	return &Processor{
		source:  source,
		jobs:    jobs,
		metrics: m,
		logger:  logger.With().Str("component", "event_processor").Logger(),
	}
}

// ProcessBlockchainEvent loads one persisted event and dispatches it by kind.
// Each kind is matched exhaustively; state-tracking events are the ingestion
// pipeline's concern and are acknowledged as no-ops here.
func (p *Processor) ProcessBlockchainEvent(ctx context.Context, blockchainID, eventID string) error {
	rec, err := p.source.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if rec.BlockchainID != blockchainID {
		return fmt.Errorf("%w: event %s does not belong to blockchain %s", faults.ErrNotFound, eventID, blockchainID)
	}

	kind := KindOfEvent(rec.EventName)
	p.metrics.EventProcessed(kind.String())

	switch kind {
	case EventDeleteBid:
		return p.handleDeleteBid(ctx, rec)
	case EventInsertBid, EventSetCacheSize, EventSetDecayRate, EventPause, EventUnpause:
		p.logger.Debug().Str("event", rec.EventName).Str("event_id", rec.ID).
			Msg("state event acknowledged; no alerts to trigger")
		return nil
	case EventUnhandled:
		p.logger.Info().Str("event", rec.EventName).Str("event_id", rec.ID).
			Msg("unhandled event name; ignoring")
		return nil
	default:
		return nil
	}
}

// handleDeleteBid fans an eviction out to every active EVICTION alert bound
// to the evicted bytecode. Per-alert enqueue failures are logged and skipped.
func (p *Processor) handleDeleteBid(ctx context.Context, rec storage.EventRecord) error {
	if len(rec.EventData) == 0 {
		return fmt.Errorf("%w: DeleteBid event %s has an empty payload", faults.ErrInvalidInput, rec.ID)
	}
	bytecodeHash := rec.EventData[0]

	alertIDs, err := p.source.ListActiveEvictionAlertIDsByBytecodeHash(ctx, rec.BlockchainID, bytecodeHash)
	if err != nil {
		return fmt.Errorf("eviction alerts for %s: %w", bytecodeHash, err)
	}
	if len(alertIDs) == 0 {
		p.logger.Debug().Str("bytecode_hash", bytecodeHash).Msg("eviction with no matching alerts")
		return nil
	}

	for _, alertID := range alertIDs {
		if err := p.jobs.EnqueueAlertTriggered(ctx, alertID); err != nil {
			p.logger.Error().Err(err).Str("alert_id", alertID).Msg("failed to enqueue eviction trigger")
			continue
		}
		p.metrics.JobEnqueued()
	}

	p.logger.Info().Str("bytecode_hash", bytecodeHash).Int("alerts", len(alertIDs)).
		Msg("eviction fanned out to alerts")
	return nil
}
