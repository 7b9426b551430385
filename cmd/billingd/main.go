// Command billingd serves the subscription ledger, usage metering and Stripe
// webhook reconciliation over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/billingd/db"
	"github.com/dmitrymomot/billingd/pkg/config"
	"github.com/dmitrymomot/billingd/pkg/httpserver"
	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/pkg/metrics"
	"github.com/dmitrymomot/billingd/pkg/pg"
	"github.com/dmitrymomot/billingd/pkg/plans"
	"github.com/dmitrymomot/billingd/pkg/redis"
	"github.com/dmitrymomot/billingd/pkg/requestid"
	"github.com/dmitrymomot/billingd/svc/api"
	"github.com/dmitrymomot/billingd/svc/gateway"
	"github.com/dmitrymomot/billingd/svc/reconcile"
	"github.com/dmitrymomot/billingd/svc/subscription"
	"github.com/dmitrymomot/billingd/svc/usage"
)

type settings struct {
	App      config.App
	Postgres pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
	Stripe   gateway.Config
	Prices   plans.Config
	Webhook  reconcile.Config
}

func main() {
	var cfg settings
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.App.Environment, cfg.App.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("billingd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg settings, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.Postgres, db.Migrations, log); err != nil {
		return err
	}

	prices, err := plans.LoadPriceTable(cfg.Prices)
	if err != nil {
		return err
	}
	if prices.Len() == 0 {
		log.Warn("price table is empty, webhook subscriptions will be rejected")
	}

	checks := []httpserver.Check{{Name: "postgres", Probe: pg.Healthcheck(pool)}}

	var (
		events      reconcile.EventLog = reconcile.NewPgEventLog(pool)
		gatewayOpts                    = []gateway.Option{gateway.WithLogger(log), gateway.WithPriceTable(prices)}
	)
	if cfg.App.RedisEnabled {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close redis client", logger.Error(err))
			}
		}()

		checks = append(checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)})
		events = reconcile.NewRedisEventLog(client, cfg.Webhook.EventRetention)
		gatewayOpts = append(gatewayOpts,
			gateway.WithCustomerCache(gateway.NewRedisCustomerCache(client, cfg.Stripe.CustomerCacheTTL, log)))
	} else {
		gatewayOpts = append(gatewayOpts,
			gateway.WithCustomerCache(gateway.NewLRUCustomerCache(cfg.Stripe.CustomerCacheSize, cfg.Stripe.CustomerCacheTTL)))
	}

	services := usage.NewPgDirectory(pool)
	ledger := subscription.NewLedger(
		subscription.NewPgStore(pool),
		subscription.WithLogger(log),
		subscription.WithServiceCounter(usage.CountServices(services)),
	)

	gw := gateway.New(cfg.Stripe, gateway.NewStripeAPI(cfg.Stripe.SecretKey), ledger, gatewayOpts...)
	if !gw.Configured() {
		log.Warn("STRIPE_SECRET_KEY is not set, billing routes will answer 503")
	}

	meter := usage.NewService(usage.NewPgStore(pool), ledger, services,
		usage.WithLogger(log),
		usage.WithReporter(gw),
	)

	webhooks := reconcile.NewHandler(cfg.Webhook, gw, ledger, prices,
		reconcile.WithLogger(log),
		reconcile.WithEventLog(events),
	)

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, checks...))
	r.Handle("/metrics", metrics.Handler())
	r.Mount("/", api.Router(api.RouterOptions{
		Ledger:   ledger,
		Usage:    meter,
		Services: services,
		Billing:  gw,
		Webhooks: webhooks,
		Logger:   log,
	}))

	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, r)
	})
	g.Go(func() error {
		return reconcile.RunPurger(ctx, events, cfg.Webhook.PurgeInterval, cfg.Webhook.EventRetention, log)
	})
	return g.Wait()
}
