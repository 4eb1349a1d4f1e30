package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tasklinkhq/tasklink-backend/internal/cron"
	"github.com/tasklinkhq/tasklink-backend/internal/notifications"
	"github.com/tasklinkhq/tasklink-backend/internal/opentasks"
	"github.com/tasklinkhq/tasklink-backend/internal/taskers"
	"github.com/tasklinkhq/tasklink-backend/internal/taskrequests"
	"github.com/tasklinkhq/tasklink-backend/internal/users"
	"github.com/tasklinkhq/tasklink-backend/pkg/config"
	"github.com/tasklinkhq/tasklink-backend/pkg/db"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
	"github.com/tasklinkhq/tasklink-backend/pkg/metrics"
	"github.com/tasklinkhq/tasklink-backend/pkg/migrate"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
	"github.com/tasklinkhq/tasklink-backend/pkg/redis"
)

const lockKeyFormat = "tl:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if err := registerJobs(registry, cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func registerJobs(registry *cron.Registry, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) error {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	board, err := opentasks.NewService(opentasks.ServiceParams{
		Repo:   opentasks.NewRepository(gormDB),
		Tx:     dbClient,
		Outbox: outboxSvc,
		Users:  users.NewRepository(gormDB),
	})
	if err != nil {
		return fmt.Errorf("build open task service: %w", err)
	}

	requestExpiry, err := cron.NewRequestExpiryJob(cron.RequestExpiryJobParams{
		Logger:        logg,
		DB:            dbClient,
		StaleReader:   taskrequests.NewRepository(gormDB),
		Board:         board,
		Outbox:        outboxSvc,
		OutboxRepo:    outboxRepo,
		PaymentWindow: cfg.Tasks.PaymentWindow,
	})
	if err != nil {
		return fmt.Errorf("build request expiry job: %w", err)
	}

	slotSweep, err := cron.NewSlotSweepJob(cron.SlotSweepJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: taskers.NewRepository(gormDB),
	})
	if err != nil {
		return fmt.Errorf("build slot sweep job: %w", err)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  int(cfg.Tasks.OutboxRetention.Hours() / 24),
	})
	if err != nil {
		return fmt.Errorf("build outbox retention job: %w", err)
	}

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(gormDB),
		Retention:  cfg.Tasks.NotificationRetentionDays,
	})
	if err != nil {
		return fmt.Errorf("build notification cleanup job: %w", err)
	}

	registry.Register(requestExpiry)
	registry.Register(slotSweep)
	registry.Register(outboxRetention)
	registry.Register(notificationCleanup)
	return nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
