package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tasklinkhq/tasklink-backend/api/routes"
	"github.com/tasklinkhq/tasklink-backend/internal/auth"
	"github.com/tasklinkhq/tasklink-backend/internal/catalog"
	"github.com/tasklinkhq/tasklink-backend/internal/devices"
	"github.com/tasklinkhq/tasklink-backend/internal/messages"
	"github.com/tasklinkhq/tasklink-backend/internal/notifications"
	"github.com/tasklinkhq/tasklink-backend/internal/opentasks"
	"github.com/tasklinkhq/tasklink-backend/internal/payments"
	"github.com/tasklinkhq/tasklink-backend/internal/payouts"
	"github.com/tasklinkhq/tasklink-backend/internal/reviews"
	"github.com/tasklinkhq/tasklink-backend/internal/support"
	"github.com/tasklinkhq/tasklink-backend/internal/taskers"
	"github.com/tasklinkhq/tasklink-backend/internal/taskrequests"
	"github.com/tasklinkhq/tasklink-backend/internal/users"
	stripewebhook "github.com/tasklinkhq/tasklink-backend/internal/webhooks/stripe"
	"github.com/tasklinkhq/tasklink-backend/pkg/auth/session"
	"github.com/tasklinkhq/tasklink-backend/pkg/config"
	"github.com/tasklinkhq/tasklink-backend/pkg/db"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
	"github.com/tasklinkhq/tasklink-backend/pkg/metrics"
	"github.com/tasklinkhq/tasklink-backend/pkg/migrate"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
	"github.com/tasklinkhq/tasklink-backend/pkg/redis"
	"github.com/tasklinkhq/tasklink-backend/pkg/stripe"
)

const stripeWebhookGuardTTL = 7 * 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe", err)
		os.Exit(1)
	}

	svcs, err := buildServices(cfg, logg, dbClient, sessionManager, stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	hooks, err := buildWebhooks(dbClient, redisClient, stripeClient, svcs.Payments)
	if err != nil {
		logg.Error(context.Background(), "failed to build webhook handlers", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, svcs, hooks),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	sessionManager *session.Manager,
	stripeClient *stripe.Client,
) (routes.Services, error) {
	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return routes.Services{}, err
	}

	registerSvc, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}

	usersSvc, err := users.NewService(usersRepo)
	if err != nil {
		return routes.Services{}, err
	}

	taskersSvc, err := taskers.NewService(taskers.NewRepository(gormDB), usersRepo)
	if err != nil {
		return routes.Services{}, err
	}

	requestsRepo := taskrequests.NewRepository(gormDB)
	openTasksSvc, err := opentasks.NewService(opentasks.ServiceParams{
		Repo:   opentasks.NewRepository(gormDB),
		Tx:     dbClient,
		Outbox: outboxSvc,
		Users:  usersRepo,
	})
	if err != nil {
		return routes.Services{}, err
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:        payments.NewRepository(gormDB),
		Tx:          dbClient,
		Outbox:      outboxSvc,
		Checkout:    payments.NewStripeClient(stripeClient),
		CheckoutCfg: cfg.Checkout,
	})
	if err != nil {
		return routes.Services{}, err
	}

	requestsSvc, err := taskrequests.NewService(taskrequests.ServiceParams{
		Repo:      requestsRepo,
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Payments:  paymentsSvc,
		OpenTasks: openTasksSvc,
	})
	if err != nil {
		return routes.Services{}, err
	}

	payoutsSvc, err := payouts.NewService(payouts.ServiceParams{
		Repo:   payouts.NewRepository(gormDB),
		Tx:     dbClient,
		Outbox: outboxSvc,
	})
	if err != nil {
		return routes.Services{}, err
	}

	reviewsSvc, err := reviews.NewService(reviews.ServiceParams{
		Repo:     reviews.NewRepository(gormDB),
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Requests: requestsRepo,
	})
	if err != nil {
		return routes.Services{}, err
	}

	messagesSvc, err := messages.NewService(messages.ServiceParams{
		Repo:   messages.NewRepository(gormDB),
		Tx:     dbClient,
		Outbox: outboxSvc,
		Users:  usersRepo,
	})
	if err != nil {
		return routes.Services{}, err
	}

	supportSvc, err := support.NewService(support.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}

	devicesSvc, err := devices.NewService(devices.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:          authSvc,
		Register:      registerSvc,
		Users:         usersSvc,
		Taskers:       taskersSvc,
		Catalog:       catalog.NewRepository(gormDB),
		TaskRequests:  requestsSvc,
		OpenTasks:     openTasksSvc,
		Payments:      paymentsSvc,
		Payouts:       payoutsSvc,
		Reviews:       reviewsSvc,
		Messages:      messagesSvc,
		Support:       supportSvc,
		Devices:       devicesSvc,
		Notifications: notificationsSvc,
	}, nil
}

func buildWebhooks(
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *stripe.Client,
	paymentsSvc payments.Service,
) (routes.Webhooks, error) {
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments:          paymentsSvc,
		Events:            stripewebhook.NewRepository(),
		TransactionRunner: dbClient,
		Metrics:           metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return routes.Webhooks{}, err
	}

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, stripeWebhookGuardTTL, "webhook:stripe")
	if err != nil {
		return routes.Webhooks{}, err
	}

	return routes.Webhooks{
		StripeClient: stripeClient,
		Service:      webhookSvc,
		Guard:        guard,
	}, nil
}
