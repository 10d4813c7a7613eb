package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rollouthq/internal/api"
	"rollouthq/internal/config"
	"rollouthq/internal/metrics"
	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	"rollouthq/internal/repository/memstore"
	"rollouthq/internal/service"
	"rollouthq/internal/webhook"
	"rollouthq/pkg/logger"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const reconcilerLockKey = "/locks/rollouthq/reconciler"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeDB, err := initRepositories(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB()

	rdb, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var etcdCli *clientv3.Client
	if cfg.Etcd.Enabled {
		etcdCli, err = initEtcd(cfg.Etcd)
		if err != nil {
			return err
		}
		defer etcdCli.Close()
	}

	observer := metrics.NewPrometheusObserver()

	// Webhook pipeline
	retries := webhook.NewRetryScheduler(observer)
	defer retries.Stop()
	dispatcher := webhook.NewDispatcher(repos.Endpoints, repos.Deliveries, retries, observer, webhook.Config{
		RequestTimeout: cfg.Webhook.RequestTimeout,
		RetryDelays:    cfg.Webhook.RetryDelays,
		MaxParallel:    cfg.Webhook.MaxParallel,
	})
	pool := webhook.NewPool(cfg.Webhook.PoolSize, cfg.Webhook.QueueSize)
	publisher := webhook.NewAsyncPublisher(pool, dispatcher, observer)

	// Snapshot mirror, only with etcd
	var (
		snapshots  repository.SnapshotInterface
		snapPub    service.SnapshotPublisher
		reconciler *service.Reconciler
		worker     *service.OutboxWorker
	)
	if etcdCli != nil {
		snapRepo := repository.NewSnapshotRepository(etcdCli)
		snapshots = snapRepo
		snapPub = service.NewSnapshotSyncer(repos.Outbox, snapRepo)
		worker = service.NewOutboxWorker(repos.Outbox, snapRepo, cfg.Workers.OutboxInterval, cfg.Workers.OutboxBatchSize)

		session, err := concurrency.NewSession(etcdCli, concurrency.WithTTL(10))
		if err != nil {
			return fmt.Errorf("create etcd session: %w", err)
		}
		defer session.Close()
		reconciler = service.NewReconciler(
			concurrency.NewMutex(session, reconcilerLockKey),
			snapRepo, repos.Features, repos.Environments, repos.Assignments,
			cfg.Workers.ReconcilerSchedule,
		)
	}

	// Services
	engine := service.NewEngine(repos.Features, repos.Environments, repos.Assignments, repos.Overrides, observer)
	writer := service.NewAssignmentWriter(repos.Features, repos.Environments, repos.Assignments, snapPub)
	overrides := service.NewOverrideManager(repos.Features, repos.Environments, repos.Overrides)
	recorder := service.NewAuditRecorder(repos.Audits, publisher)
	directory := service.NewFeatureService(repos.Features, repos.Environments, repos.Audits, snapshots)
	webhooks := service.NewWebhookService(repos.Endpoints, repos.Deliveries, dispatcher)

	r := api.RegisterRoutes(api.Handlers{
		Flags:    api.NewFlagHandler(engine, writer, overrides, recorder),
		Features: api.NewFeatureHandler(directory, recorder),
		Webhooks: api.NewWebhookHandler(webhooks, recorder),
		Audits:   api.NewAuditHandler(recorder),
	}, rdb, api.RouterConfig{
		JWTSecret:                 []byte(cfg.Auth.JWTSecret),
		CorsOrigins:               cfg.Server.CorsOrigins,
		RequestsPerSecond:         cfg.RateLimit.RequestsPerSecond,
		EvaluateRequestsPerSecond: cfg.RateLimit.EvaluateRequestsPerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return pool.Run(gctx) })
	if worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
	}
	if reconciler != nil {
		g.Go(func() error { return reconciler.Run(gctx) })
	}

	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment),
			zap.String("database", cfg.Database.Driver),
			zap.Bool("etcd", etcdCli != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if n := retries.Stop(); n > 0 {
			logger.Warn("dropped pending webhook retries", zap.Int("count", n))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited properly")
	return nil
}

// -- Infrastructure Initializers --

func initRepositories(cfg config.DatabaseConfig) (repository.Set, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memstore.New().Set(), func() {}, nil
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return repository.Set{}, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return repository.Set{}, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		return repository.Set{}, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repository.NewGormSet(db), closeFn, nil
}

// initRedis returns nil when no address is configured.
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func initEtcd(cfg config.EtcdConfig) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return client, nil
}
