package alerting

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"bid-risk-alerts/internal/chain"
	"bid-risk-alerts/internal/metrics"
	"bid-risk-alerts/internal/queue"
	"bid-risk-alerts/internal/storage"
)

// AlertSource lists the chains and alerts a sweep visits.
type AlertSource interface {
	ListEnabledBlockchains(ctx context.Context) ([]storage.Blockchain, error)
	ListActiveBidSafetyAlerts(ctx context.Context, blockchainID string) ([]storage.BidSafetyAlert, error)
}

// ReaderPool hands out per-chain cache manager readers.
type ReaderPool interface {
	Reader(ep chain.Endpoint) (chain.Reader, error)
}

// SweeperOptions tune sweep behaviour.
type SweeperOptions struct {
	// AdvisoryLockKey guards against concurrent sweeps from other service
	// instances. Zero disables the database lock.
	AdvisoryLockKey int64
}

/// Sweeper runs the periodic bid-safety pass: sequentially over enabled
// chains, sequentially over each chain's active alerts, to bound concurrent
// RPC load. Per-alert and per-chain failures are logged and skipped so one
// unreachable endpoint never aborts the rest of the sweep.
type Sweeper struct {
	source  AlertSource
	pool    ReaderPool
	eval    *Evaluator
	jobs    queue.Enqueuer
	locker  storage.AdvisoryLocker
	metrics *metrics.Metrics
	logger  zerolog.Logger
	opts    SweeperOptions

	running atomic.Bool
}

// NewSweeper constructs a Sweeper. locker and m may be nil.
func NewSweeper(source AlertSource, pool ReaderPool, eval *Evaluator, jobs queue.Enqueuer, locker storage.AdvisoryLocker, m *metrics.Metrics, opts SweeperOptions, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		source:  source,
		pool:    pool,
		eval:    eval,
		jobs:    jobs,
		locker:  locker,
		metrics: m,
		logger:  logger.With().Str("component", "sweeper").Logger(),
		opts:    opts,
	}
}

// Sweep runs one bid-safety pass. A tick arriving while the previous sweep is
// still running is skipped rather than stacked. Failing to list chains at all
// abandons the tick; the scheduler retries on the next interval.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.SweepSkipped()
		s.logger.Warn().Msg("previous sweep still running; skipping tick")
		return nil
	}
	defer s.running.Store(false)

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.metrics.SweepSkipped()
		s.logger.Debug().Msg("advisory lock held elsewhere; skipping tick")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	started := time.Now()
	chains, err := s.source.ListEnabledBlockchains(ctx)
	if err != nil {
		return fmt.Errorf("list enabled blockchains: %w", err)
	}

	for _, bc := range chains {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.sweepChain(ctx, bc, now); err != nil {
			s.logger.Error().Err(err).Str("blockchain", bc.Name).Msg("chain sweep failed; continuing")
		}
	}

	s.metrics.SweepCompleted(time.Since(started).Seconds())
	s.logger.Info().Int("chains", len(chains)).Dur("took", time.Since(started)).Msg("sweep completed")
	return nil
}

func (s *Sweeper) sweepChain(ctx context.Context, bc storage.Blockchain, now time.Time) error {
	alerts, err := s.source.ListActiveBidSafetyAlerts(ctx, bc.ID)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	reader, err := s.pool.Reader(chain.Endpoint{
		BlockchainID:        bc.ID,
		RPCURL:              bc.RPCURL,
		CacheManagerAddress: bc.CacheManagerAddress,
	})
	if err != nil {
		return fmt.Errorf("chain reader: %w", err)
	}

	for _, alert := range alerts {
		s.metrics.AlertEvaluated()

		breached, err := s.eval.BidSafetyBreached(ctx, reader, alert, now)
		if err != nil {
			s.metrics.EvaluationFailed()
			s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("alert evaluation failed; skipping")
			continue
		}
		if !breached {
			continue
		}

		s.metrics.AlertTriggered()
		if err := s.jobs.EnqueueAlertTriggered(ctx, alert.ID); err != nil {
			s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to enqueue trigger job")
			continue
		}
		s.metrics.JobEnqueued()
		s.logger.Info().Str("alert_id", alert.ID).Str("blockchain", bc.Name).Msg("bid safety alert triggered")
	}
	return nil
}

func (s *Sweeper) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.AdvisoryLockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.AdvisoryLockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
