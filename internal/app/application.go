package app

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/his-sync/replicator/internal/cache"
	"github.com/his-sync/replicator/internal/config"
	"github.com/his-sync/replicator/internal/lifecycle"
	"github.com/his-sync/replicator/internal/metrics"
	"github.com/his-sync/replicator/internal/orchestrator"
	"github.com/his-sync/replicator/internal/scheduler"
	"github.com/his-sync/replicator/internal/store"
	"github.com/his-sync/replicator/internal/store/memstore"
	"github.com/his-sync/replicator/internal/store/migrations"
	"github.com/his-sync/replicator/internal/store/pgstore"
	"github.com/his-sync/replicator/internal/system"
	"github.com/his-sync/replicator/pkg/logger"
)

// Application composes every collaborator package into one running process
// and registers their lifecycles with a system.Manager, mirroring the
// teacher's single-constructor Application wiring.
type Application struct {
	cfg *config.Config
	log *logger.Logger

	Instances      store.InstanceStore
	Configurations store.ConfigurationStore
	Jobs           store.JobStore
	AutoSync       store.AutoSyncStore
	Entities       store.EntityStore

	Orchestrator *orchestrator.Orchestrator
	Detector     *orchestrator.DetectorAdapter
	Lifecycle    *lifecycle.Manager
	Scheduler    *scheduler.Scheduler

	manager *system.Manager
	closers []func() error
}

// New builds an Application from cfg: store (Postgres or in-memory), cache
// (Redis or in-memory), a pooled per-instance HIS client factory, the Sync
// Orchestrator, the Change Detector, the Lifecycle Manager, and the
// Scheduler, each registered with a system.Manager for ordered start/stop.
func New(cfg *config.Config) (*Application, error) {
	log := logger.New("hissync", logger.Config{
		Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput, Directory: cfg.LogDirectory,
	})

	app := &Application{cfg: cfg, log: log, manager: system.NewManager()}

	backend, backendCloser, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}
	if backendCloser != nil {
		app.closers = append(app.closers, backendCloser)
	}

	instances, configurations, jobs, autoSync, entities, storeCloser, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	if storeCloser != nil {
		app.closers = append(app.closers, storeCloser)
	}
	app.Instances, app.Configurations, app.Jobs, app.AutoSync, app.Entities = instances, configurations, jobs, autoSync, entities

	pool := newClientPool(log)
	clients := pool.factory()

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)

	app.Orchestrator = orchestrator.New(configurations, instances, jobs, clients, log)
	app.Orchestrator.Metrics = collectors
	app.Orchestrator.Entities = entities
	app.Detector = orchestrator.NewDetectorAdapter(configurations, instances, autoSync, clients,
		newCacheWatermarks(backend), newCacheAuditCapable(backend))
	app.Detector.Metrics = collectors

	app.Lifecycle = lifecycle.NewManager(
		jobs,
		newCacheCooldowns(backend),
		newCacheLifecycleStates(backend),
		app.Detector,
		app.Orchestrator,
		maxSyncsPerHourResolver(autoSync),
		cooldownAfterErrorResolver(autoSync),
	)

	ticker := newLifecycleTicker(app.Lifecycle, log)
	lookup := newConfigScheduleLookup(configurations, autoSync)
	app.Scheduler = scheduler.New(lookup, ticker, log)

	poller := newRetryPoller(jobs, app.Orchestrator, log)
	if err := app.manager.Register(poller); err != nil {
		return nil, err
	}
	schedSvc := newSchedulerService(app.Scheduler, autoSync, log)
	schedSvc.Metrics = collectors
	if err := app.manager.Register(schedSvc); err != nil {
		return nil, err
	}
	if err := app.manager.Register(newStatusServer(cfg.ListenAddr, registry, log)); err != nil {
		return nil, err
	}

	return app, nil
}

// Start runs every registered system.Service in order.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop runs every registered system.Service in reverse order, then closes
// any resources opened by New (the database handle, the Redis client).
func (a *Application) Stop(ctx context.Context) error {
	stopErr := a.manager.Stop(ctx)
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && stopErr == nil {
			stopErr = err
		}
	}
	return stopErr
}

func buildCache(cfg *config.Config) (cache.ReplicationCache, func() error, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		redisCache := cache.NewRedisCache(client)
		if err := redisCache.Ping(context.Background()); err != nil {
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return redisCache, redisCache.Close, nil
	default:
		return cache.NewMemoryCache(), nil, nil
	}
}

func buildStore(cfg *config.Config) (store.InstanceStore, store.ConfigurationStore, store.JobStore, store.AutoSyncStore, store.EntityStore, func() error, error) {
	if cfg.DatabaseDSN == "" {
		mem := memstore.New()
		return mem, mem, mem, mem, mem, nil, nil
	}

	db, err := pgstore.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxConnections)
	db.SetConnMaxIdleTime(cfg.DBIdleTimeout)

	if cfg.RunMigrations {
		if err := migrations.Apply(db.DB); err != nil {
			return nil, nil, nil, nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	pg := pgstore.New(db)
	closer := func() error { return closeDB(db) }
	return pg, pg, pg, pg, pg, closer, nil
}

func closeDB(db *sqlx.DB) error { return db.Close() }
