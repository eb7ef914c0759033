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

	"cloud.google.com/go/pubsub"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/supplynet/api/internal/events"
	"github.com/supplynet/api/internal/handlers"
	"github.com/supplynet/api/internal/payments"
	"github.com/supplynet/api/internal/platform/auth"
	"github.com/supplynet/api/internal/platform/config"
	"github.com/supplynet/api/internal/platform/idempotency"
	"github.com/supplynet/api/internal/platform/observability"
	"github.com/supplynet/api/internal/repositories"
	"github.com/supplynet/api/internal/repositories/memory"
	"github.com/supplynet/api/internal/repositories/postgres"
	"github.com/supplynet/api/internal/services"
)

const (
	shutdownTimeout  = 15 * time.Second
	cleanupInterval  = time.Hour
	cleanupBatchSize = 1000
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	eventLogger := zapEventLogger(logger)

	var registry repositories.Registry
	var idempotencyStore idempotency.Store
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("failed to initialise database pool", zap.Error(err))
		}
		defer pool.Close()

		pgRegistry, err := postgres.NewRegistry(pool)
		if err != nil {
			logger.Fatal("failed to initialise postgres registry", zap.Error(err))
		}
		registry = pgRegistry

		pgStore, err := idempotency.NewPostgresStore(pool)
		if err != nil {
			logger.Fatal("failed to initialise idempotency store", zap.Error(err))
		}
		idempotencyStore = pgStore
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		registry = memory.NewRegistry()
		idempotencyStore = idempotency.NewMemoryStore()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		topic := pubsubClient.Topic(cfg.Events.TopicPrefix + "-order-events")
		defer topic.Stop()

		publisher, err = events.NewPubSubPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
	} else {
		logger.Warn("PUBSUB_PROJECT_ID not set, domain events will be dropped")
	}

	resolver, err := auth.NewJWTResolver(cfg.Identity.TokenSecret, cfg.Identity.Issuer)
	if err != nil {
		logger.Fatal("failed to initialise identity resolver", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Registry:       registry,
		Idempotency:    idempotencyStore,
		Events:         publisher,
		Logger:         eventLogger,
		IdempotencyTTL: cfg.Idempotency.TTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	deliveryService, err := services.NewDeliveryService(services.DeliveryServiceDeps{
		Registry: registry,
		Events:   publisher,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise delivery service", zap.Error(err))
	}

	invoiceService, err := services.NewInvoiceService(services.InvoiceServiceDeps{
		Registry: registry,
		Events:   publisher,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise invoice service", zap.Error(err))
	}

	routerOpts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithAuthMiddleware(auth.RequirePrincipal(resolver)),
		handlers.WithBuyerRoutes(handlers.NewBuyerHandlers(orderService, invoiceService).Routes),
		handlers.WithProviderRoutes(handlers.NewProviderHandlers(orderService, invoiceService).Routes),
		handlers.WithDeliveryRoutes(handlers.NewDeliveryHandlers(deliveryService).Routes),
		handlers.WithInvoiceRoutes(handlers.NewInvoiceHandlers(invoiceService).Routes),
	}

	if cfg.Stripe.APIKey != "" {
		checkoutProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.Stripe.APIKey,
			Logger: payments.StripeLogger(eventLogger),
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		verifier, err := payments.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret, nil)
		if err != nil {
			logger.Fatal("failed to initialise stripe webhook verifier", zap.Error(err))
		}

		paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
			Registry:   registry,
			Provider:   checkoutProvider,
			Verifier:   verifier,
			Events:     publisher,
			SuccessURL:      cfg.Stripe.FrontendBaseURL + "/buyer/invoices?checkout=success",
			CancelURL:       cfg.Stripe.FrontendBaseURL + "/buyer/invoices?checkout=cancelled",
			Logger:          eventLogger,
			CheckoutTimeout: cfg.Stripe.CheckoutTimeout,
		})
		if err != nil {
			logger.Fatal("failed to initialise payment service", zap.Error(err))
		}

		routerOpts = append(routerOpts,
			handlers.WithPaymentRoutes(handlers.NewPaymentHandlers(paymentService).Routes),
			handlers.WithWebhookRoutes(handlers.NewWebhookHandlers(paymentService).Routes),
		)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, payment endpoints disabled")
	}

	healthOpts := []handlers.HealthOption{}
	if pool != nil {
		healthOpts = append(healthOpts, handlers.WithReadyCheck("database", func(ctx context.Context) error {
			return pool.Ping(ctx)
		}))
	}
	routerOpts = append(routerOpts, handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)))

	router := handlers.NewRouter(routerOpts...)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case now := <-ticker.C:
				removed, err := idempotencyStore.CleanupExpired(sweepCtx, now.UTC(), cleanupBatchSize)
				if err != nil {
					logger.Warn("idempotency cleanup failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Info("idempotency records expired", zap.Int("removed", removed))
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("server error", zap.Error(err))
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

// zapEventLogger adapts the structured zap logger to the callback style the
// services expect.
func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
