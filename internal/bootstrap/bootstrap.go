// Package bootstrap builds the reconcile object graph shared by the api, cron worker and
// operator CLI binaries.
package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-ledger/internal/cron"
	"github.com/angelmondragon/packfinderz-ledger/internal/inventory"
	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/internal/livestate"
	"github.com/angelmondragon/packfinderz-ledger/internal/orders"
	"github.com/angelmondragon/packfinderz-ledger/internal/reclaim"
	"github.com/angelmondragon/packfinderz-ledger/internal/reconcile"
	"github.com/angelmondragon/packfinderz-ledger/internal/replay"
	"github.com/angelmondragon/packfinderz-ledger/pkg/config"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/metrics"
	"github.com/angelmondragon/packfinderz-ledger/pkg/redis"
)

const reclaimLockName = "stale-reservation-reclaim"

// Params carry the already connected dependencies. Redis may only be nil when the config
// allows a process-local reclaim lock.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

// Components is the wired graph.
type Components struct {
	Ledger    ledger.Service
	Engine    *replay.Engine
	Reclaimer *reclaim.Reclaimer
	Reconcile reconcile.Service
	Metrics   *metrics.ReconcileMetrics
}

func Build(params Params) (*Components, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	cfg := params.Config
	conn := params.DB.DB()
	reconcileMetrics := metrics.NewReconcileMetrics(params.Registerer)

	ledgerRepo := ledger.NewRepository(conn)
	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	reader, err := ledger.NewReader(ledgerRepo, cfg.Reconcile.ReaderPageSize)
	if err != nil {
		return nil, fmt.Errorf("ledger reader: %w", err)
	}

	engine, err := replay.NewEngine(replay.EngineParams{
		Logger:  params.Logger,
		DB:      params.DB,
		Readers: replay.LedgerReaders(reader),
		Stores:  livestate.Factory(conn),
		Policy:  cfg.Reconcile.Policy(),
		Workers: cfg.Reconcile.FoldWorkers,
		Timeout: cfg.Reconcile.ReplayTimeout,
		Metrics: reconcileMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("replay engine: %w", err)
	}

	lock, err := reclaimLock(params.Redis, cfg)
	if err != nil {
		return nil, err
	}
	reclaimer, err := reclaim.New(reclaim.Params{
		Logger:    params.Logger,
		DB:        params.DB,
		Orders:    orders.NewRepository(conn),
		Ledger:    ledgerService,
		Inventory: inventory.NewReleaser(),
		Lock:      lock,
		Metrics:   reconcileMetrics,
		Timeout:   cfg.Reclaim.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("reclaimer: %w", err)
	}

	service, err := reconcile.NewService(reconcile.ServiceParams{
		Logger:    params.Logger,
		Engine:    engine,
		Reclaimer: reclaimer,
		Metrics:   reconcileMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile service: %w", err)
	}

	return &Components{
		Ledger:    ledgerService,
		Engine:    engine,
		Reclaimer: reclaimer,
		Reconcile: service,
		Metrics:   reconcileMetrics,
	}, nil
}

func reclaimLock(client *redis.Client, cfg *config.Config) (cron.Lock, error) {
	if client == nil {
		if !cfg.AllowsLocalLock() {
			return nil, fmt.Errorf("reclaim lock: redis required in %q", cfg.App.Env)
		}
		return cron.NewLocalLock(), nil
	}
	lock, err := cron.NewRedisLock(client.Raw(), reclaimLockKey(client, cfg.App.Env), cfg.Reclaim.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("reclaim lock: %w", err)
	}
	return lock, nil
}

// reclaimLockKey scopes the lock per environment so deployments sharing a redis do not
// block each other.
func reclaimLockKey(client *redis.Client, env string) string {
	return client.LockKey(reclaimLockName + ":" + env)
}
