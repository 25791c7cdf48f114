// Command webhookd runs the Stripe webhook processing engine: HTTP ingress,
// ledger-backed dedupe, per-event handlers, and a bounded background queue
// for best-effort side effects. Grounded on main.go wiring
// order (pool -> provider -> River -> HTTP server -> signal-driven graceful
// shutdown), generalized to the new internal/* package layout.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/background"
	"github.com/rytkhs/eventpay-webhook-engine/internal/config"
	"github.com/rytkhs/eventpay-webhook-engine/internal/disputes"
	"github.com/rytkhs/eventpay-webhook-engine/internal/handlers"
	"github.com/rytkhs/eventpay-webhook-engine/internal/httpapi"
	"github.com/rytkhs/eventpay-webhook-engine/internal/ledger"
	"github.com/rytkhs/eventpay-webhook-engine/internal/logging"
	"github.com/rytkhs/eventpay-webhook-engine/internal/metrics"
	"github.com/rytkhs/eventpay-webhook-engine/internal/orchestrator"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
	"github.com/rytkhs/eventpay-webhook-engine/internal/provider"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	env := os.Getenv("APP_ENV")
	log, err := logging.New(env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("starting eventpay webhook engine",
		zap.String("version", version),
		zap.String("database", cfg.Database.MaskedDatabaseURL()),
		zap.String("webhook_port", cfg.Server.WebhookPort))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		log.Fatal("failed to parse database url", zap.Error(err))
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "eventpay-webhookd " + version
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLife
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdle

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("failed to create database pool", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}
	log.Info("database connection pool established")

	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	stripeFetcher := provider.NewStripeFetcher(cfg.Stripe.APIKey, log)

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, background.NewSideEffectWorker(log))
	riverClient, err := river.NewClient(riverpgxv5.New(dbPool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.Worker.RiverQueueWorkers},
		},
		Workers: riverWorkers,
	})
	if err != nil {
		log.Fatal("failed to create river client", zap.Error(err))
	}
	if err := riverClient.Start(ctx); err != nil {
		log.Fatal("failed to start river client", zap.Error(err))
	}
	defer riverClient.Stop(context.Background())
	log.Info("river job queue started", zap.Int("workers", cfg.Worker.RiverQueueWorkers))

	overflow := background.NewRiverOverflow(riverClient)
	bgQueue := background.NewQueue(cfg.Worker.BackgroundQueueSize, cfg.Worker.RiverQueueWorkers, overflow, log)
	bgQueue.Start(ctx)

	paymentsRepo := payments.NewPgRepository(dbPool)
	disputesRepo := disputes.NewPgRepository(dbPool)
	ledgerRepo := ledger.NewPoolRepository(dbPool)
	ledgerStore := ledger.NewStore(ledgerRepo, nil)

	deps := handlers.Deps{
		Payments: paymentsRepo,
		Provider: stripeFetcher,
		Disputes: disputesRepo,
		Background: bgQueue,
		Log: log,
	}
	orch := orchestrator.New(ledgerStore, deps, log)

	httpServer := httpapi.New(orch, cfg.Stripe.WebhookSecret, ":"+cfg.Server.WebhookPort, cfg.Server.RequestTimeout, log)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(":9090", metricsMux); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("webhook http server stopped unexpectedly", zap.Error(err))
		}
	}()

	log.Info("eventpay webhook engine running", zap.String("webhook_path", "/webhooks/stripe"))

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping http server", zap.Error(err))
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Error("error stopping river client", zap.Error(err))
	}
	log.Info("shutdown complete")
}
