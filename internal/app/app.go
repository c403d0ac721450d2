package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bid-risk-alerts/internal/alerting"
	"bid-risk-alerts/internal/chain"
	"bid-risk-alerts/internal/config"
	"bid-risk-alerts/internal/decay"
	"bid-risk-alerts/internal/metrics"
	"bid-risk-alerts/internal/queue"
	"bid-risk-alerts/internal/risk"
	"bid-risk-alerts/internal/scheduler"
	"bid-risk-alerts/internal/stats"
	"bid-risk-alerts/internal/storage"
	"bid-risk-alerts/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openQueue(ctx context.Context) (*queue.RedisQueue, func(), error) {
	q, err := queue.NewRedisQueue(ctx, queue.Options{
		Addr:        a.Config.Redis.Addr,
		Password:    a.Config.Redis.Password,
		DB:          a.Config.Redis.DB,
		QueueKey:    a.Config.Redis.QueueKey,
		DialTimeout: a.Config.Redis.DialTimeout,
	}, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := q.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("closing redis queue")
		}
	}
	return q, closer, nil
}

func (a *App) newChainPool() *chain.Pool {
	return chain.NewPool(a.Config.Chain.RequestTimeout, a.Logger)
}

func (a *App) newEngine(store *storage.Store) *risk.Engine {
	analyzer := stats.NewAnalyzer(store, a.Logger)
	resolver := decay.NewResolver(store, a.Logger)
	return risk.NewEngine(analyzer, resolver, a.Logger)
}

// resolveChain maps a numeric chain id onto the registered blockchain and a
// live cache manager reader for it.
func (a *App) resolveChain(ctx context.Context, store *storage.Store, pool *chain.Pool, chainID int64) (storage.Blockchain, chain.Reader, error) {
	bc, err := store.GetBlockchainByChainID(ctx, chainID)
	if err != nil {
		return storage.Blockchain{}, nil, fmt.Errorf("blockchain %d: %w", chainID, err)
	}
	reader, err := pool.Reader(chain.Endpoint{
		BlockchainID:        bc.ID,
		RPCURL:              bc.RPCURL,
		CacheManagerAddress: bc.CacheManagerAddress,
	})
	if err != nil {
		return storage.Blockchain{}, nil, err
	}
	return bc, reader, nil
}

// Run executes the long-running monitoring service: the periodic bid-safety
// sweep plus the ops HTTP listener. It blocks until the context is cancelled
// or a component fails fatally.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	resolver := decay.NewResolver(store, a.Logger)
	evaluator := alerting.NewEvaluator(resolver, a.Logger)
	sweeper := alerting.NewSweeper(store, pool, evaluator, jobs, store, m, alerting.SweeperOptions{
		AdvisoryLockKey: a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToInterval: a.Config.Scheduler.AlignToInterval,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return sched.Run(ctx, sweeper.Sweep)
	})

	if a.Config.Metrics.Enabled {
		group.Go(func() error {
			return a.serveOps(ctx, registry)
		})
	}

	a.Logger.Info().Str("version", version.Version).Msg("starting bid safety monitor")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("bid safety monitor stopped")
	return nil
}

func (a *App) serveOps(ctx context.Context, registry *prometheus.Registry) error {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              a.Config.Metrics.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn().Err(err).Msg("ops listener shutdown")
		}
	}()

	a.Logger.Info().Str("addr", a.Config.Metrics.ListenAddr).Msg("ops listener started")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
