// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trainer-billing/internal/config"
	"trainer-billing/internal/domain/ports/adapter"
	collabAdapters "trainer-billing/internal/infra/adapters/collab"
	payAdapters "trainer-billing/internal/infra/adapters/payment"
	pg "trainer-billing/internal/infra/db/postgres"
	"trainer-billing/internal/infra/logging"
	"trainer-billing/internal/infra/metrics"
	red "trainer-billing/internal/infra/redis"
	"trainer-billing/internal/infra/sched"
	"trainer-billing/internal/infra/web"
	"trainer-billing/internal/infra/worker"
	"trainer-billing/internal/usecase"
)

const gatewayMercadoPago = "mercadopago"

// poolSubmitter adapts the worker pool to the use case's submitter port.
type poolSubmitter struct{ p *worker.Pool }

func (s poolSubmitter) Submit(task func(ctx context.Context) error) error {
	return s.p.Submit(task)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop collaborators)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	credCache := red.NewCredentialCache(redisClient, cfg.Redis.TTL)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txMgr := pg.NewTxManager(pool)
	chargeRepo := pg.NewChargeRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	credRepo := pg.NewCredentialRepo(pool)
	eventRepo := pg.NewWebhookEventRepo(pool)
	notifLogRepo := pg.NewNotificationLogRepo(pool)

	// ---- Credentials + gateway ----
	credUC := usecase.NewCredentialUseCase(gatewayMercadoPago, credRepo, credCache, logger)
	gateway, err := payAdapters.NewMercadoPagoGateway(
		cfg.Payment.MercadoPago.BaseURL,
		cfg.Payment.MercadoPago.NotificationURL,
		cfg.Payment.MercadoPago.BackURL,
		credUC,
		cfg.Payment.Timeout,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("mercadopago gateway")
	}
	credUC.SetVerifier(gateway)

	// ---- Collaborators ----
	var notifier adapter.Notifier
	var membership adapter.MembershipStore
	if cfg.Collab.NotifierURL != "" {
		notifier = collabAdapters.NewHTTPNotifier(cfg.Collab.NotifierURL, cfg.Collab.APIKey, cfg.Payment.Timeout)
	} else {
		notifier = collabAdapters.NewLogNotifier(logger)
	}
	if cfg.Collab.MembershipURL != "" {
		membership = collabAdapters.NewHTTPMembershipStore(cfg.Collab.MembershipURL, cfg.Collab.APIKey, cfg.Payment.Timeout)
	} else {
		membership = collabAdapters.NewLogMembershipStore(logger)
	}

	// ---- Use cases ----
	chargeUC := usecase.NewChargeUseCase(chargeRepo, planRepo, gateway, logger)
	reconcileUC := usecase.NewReconcileUseCase(chargeRepo, subRepo, planRepo, gateway, membership, notifier, txMgr, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, membership, notifier, txMgr, logger)
	notifUC := usecase.NewNotificationUseCase(subRepo, notifLogRepo, notifier, logger)

	// ---- Worker pool ----
	taskPool := worker.NewPool(0, logger)
	taskPool.Start(ctx)
	defer taskPool.Stop()

	webhookUC := usecase.NewWebhookUseCase(eventRepo, reconcileUC, poolSubmitter{taskPool}, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.HTTP.JWTSecret, cfg.HTTP.SecureCookie, "", cfg.HTTP.SessionTTL)
	srv := web.NewServer(chargeUC, webhookUC, credUC, subUC, auth, cfg.HTTP.AdminAPIKey, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTP.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Schedulers ----
	retryWorker := sched.NewRetryWorker(cfg.Scheduler.RetryInterval, cfg.Scheduler.RetryBatchSize, webhookUC, locker, logger)
	go func() { _ = retryWorker.Run(ctx) }()

	expiryWorker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, 100, subUC, chargeUC, locker, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	reminderWorker := sched.NewReminderWorker(cfg.Scheduler.ReminderInterval, cfg.Scheduler.ReminderHorizons, notifUC, locker, logger)
	go func() { _ = reminderWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := server.Shutdown(shutCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
