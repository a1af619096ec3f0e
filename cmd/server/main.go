package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prorata-io/prorata/internal/cache"
	"github.com/prorata-io/prorata/internal/config"
	"github.com/prorata-io/prorata/internal/consumer"
	"github.com/prorata-io/prorata/internal/domain/entitlement"
	"github.com/prorata-io/prorata/internal/domain/feature"
	"github.com/prorata-io/prorata/internal/domain/price"
	"github.com/prorata-io/prorata/internal/domain/rollover"
	"github.com/prorata-io/prorata/internal/integration/stripe"
	"github.com/prorata-io/prorata/internal/logger"
	"github.com/prorata-io/prorata/internal/postgres"
	"github.com/prorata-io/prorata/internal/pubsub"
	kafkapubsub "github.com/prorata-io/prorata/internal/pubsub/kafka"
	repo "github.com/prorata-io/prorata/internal/repository/postgres"
	"github.com/prorata-io/prorata/internal/service"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			newPostgresClient,
			cache.Initialize,
			newPubSub,
			stripe.NewClient,

			repo.NewEntitlementRepository,
			repo.NewRolloverRepository,
			repo.NewFeatureRepository,
			repo.NewPriceRepository,

			newServiceParams,
			service.NewUsageService,
			service.NewEventService,
			service.NewBillingService,
			service.NewBalanceService,
			service.NewRolloverService,

			consumer.NewUsageConsumer,
		),
		fx.Invoke(initSentry),
		fx.Invoke(runConsumer),
	)
	app.Run()
}

func newPostgresClient(cfg *config.Configuration, log *logger.Logger) (postgres.IClient, error) {
	return postgres.NewClient(cfg, log)
}

// newPubSub returns the kafka transport; both halves share one connection.
func newPubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.Publisher, pubsub.Subscriber, error) {
	return kafkapubsub.NewPubSub(cfg, log)
}

func newServiceParams(
	cfg *config.Configuration,
	log *logger.Logger,
	db postgres.IClient,
	cacheStore cache.Cache,
	entitlementRepo entitlement.Repository,
	rolloverRepo rollover.Repository,
	featureRepo feature.Repository,
	priceRepo price.Repository,
	invoiceClient stripe.InvoiceClient,
	publisher pubsub.Publisher,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:          log,
		Config:          cfg,
		DB:              db,
		Cache:           cacheStore,
		EntitlementRepo: entitlementRepo,
		RolloverRepo:    rolloverRepo,
		FeatureRepo:     featureRepo,
		PriceRepo:       priceRepo,
		InvoiceClient:   invoiceClient,
		Publisher:       publisher,
	}
}

func initSentry(cfg *config.Configuration, log *logger.Logger) error {
	if !cfg.Sentry.Enabled || cfg.Sentry.DSN == "" {
		log.Debugw("sentry disabled")
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		TracesSampleRate: cfg.Sentry.SampleRate,
	})
}

func runConsumer(
	lc fx.Lifecycle,
	log *logger.Logger,
	db postgres.IClient,
	publisher pubsub.Publisher,
	subscriber pubsub.Subscriber,
	usageConsumer *consumer.UsageConsumer,
) {
	consumerCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := usageConsumer.Run(consumerCtx); err != nil && consumerCtx.Err() == nil {
					log.Fatalw("usage consumer exited", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			if err := subscriber.Close(); err != nil {
				log.Errorw("failed to close subscriber", "error", err)
			}
			if err := publisher.Close(); err != nil {
				log.Errorw("failed to close publisher", "error", err)
			}
			if err := db.Close(); err != nil {
				log.Errorw("failed to close database", "error", err)
			}
			sentry.Flush(2 * time.Second)
			return nil
		},
	})
}
