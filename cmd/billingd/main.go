package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/subkit/pkg/config"
	"github.com/dmitrymomot/subkit/pkg/httpserver"
	"github.com/dmitrymomot/subkit/pkg/jobs"
	"github.com/dmitrymomot/subkit/pkg/logger"
	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/pg"
	"github.com/dmitrymomot/subkit/pkg/provider"
	"github.com/dmitrymomot/subkit/pkg/quota"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

type appConfig struct {
	AppEnv          string `env:"APP_ENV" envDefault:"development"`
	PlansPath       string `env:"PLANS_PATH" envDefault:"plans.yaml"`
	PaymentProvider string `env:"PAYMENT_PROVIDER" envDefault:"paddle"`
	ChargeCron      string `env:"CHARGE_CRON" envDefault:"*/10 * * * *"`
	ReconcileCron   string `env:"RECONCILE_CRON" envDefault:"*/15 * * * *"`
}

func main() {
	var (
		appCfg  appConfig
		pgCfg   pg.Config
		httpCfg httpserver.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&httpCfg)

	slogger := logger.New(logger.WithEnvironment(appCfg.AppEnv, "billingd"))
	logger.SetAsDefault(slogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, slogger); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	catalog, err := subscription.NewCatalog(ctx, subscription.NewYAMLSource(appCfg.PlansPath))
	if err != nil {
		log.Fatalf("failed to load plan catalog: %v", err)
	}

	subs := pg.NewSubscriptionStore(pool)
	usage := pg.NewUsageStore(pool)
	payments := pg.NewPaymentStore(pool)
	tx := pg.NewTransactor(pool)

	transitions := payment.NewService(tx, catalog, payment.WithLogger(slogger))
	ledger := quota.NewLedger(catalog, subs, usage)

	registry := buildRegistry(appCfg, transitions, slogger)
	metrics := jobs.NewMetrics(prometheus.DefaultRegisterer)

	runner := jobs.NewRunner(
		jobs.WithRunnerLogger(slogger),
		jobs.WithRunnerMetrics(metrics),
	)
	chargeJob := jobs.NewChargeRecurring(tx, subs, catalog, registry, transitions,
		jobs.WithChargeLogger(slogger),
		jobs.WithChargeMetrics(metrics))
	reconcileJob := jobs.NewReconcile(payments, registry,
		jobs.WithReconcileLogger(slogger),
		jobs.WithReconcileMetrics(metrics))

	if err := runner.Register(appCfg.ChargeCron, chargeJob); err != nil {
		log.Fatalf("failed to register charge job: %v", err)
	}
	if err := runner.Register(appCfg.ReconcileCron, reconcileJob); err != nil {
		log.Fatalf("failed to register reconcile job: %v", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	router.Mount("/webhooks", provider.Router(registry, transitions, slogger))
	router.Mount("/quotas", quotaRoutes(ledger, usage))
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", httpserver.HealthCheckHandler(ctx, slogger))
	router.Get("/readyz", httpserver.HealthCheckHandler(ctx, slogger, pg.Healthcheck(pool)))

	go func() {
		if err := runner.Start(ctx); err != nil && ctx.Err() == nil {
			slogger.Error("job runner failed", logger.Error(err))
		}
	}()

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(slogger))
	if err := srv.Run(ctx, router); err != nil {
		slogger.Error("http server failed", logger.Error(err))
		os.Exit(1)
	}
}

func buildRegistry(cfg appConfig, transitions *payment.Service, log *slog.Logger) *provider.Registry {
	switch cfg.PaymentProvider {
	case "dummy":
		// Local development: charges succeed without touching any upstream.
		log.Warn("using dummy payment provider, no real charges will happen")
		return provider.NewRegistry(provider.NewDummyProvider(transitions))
	default:
		var paddleCfg provider.PaddleConfig
		config.MustLoad(&paddleCfg)
		paddleProvider, err := provider.NewPaddleProvider(paddleCfg, transitions)
		if err != nil {
			log.Error("failed to initialize paddle provider", logger.Error(err))
			os.Exit(1)
		}
		return provider.NewRegistry(paddleProvider)
	}
}
