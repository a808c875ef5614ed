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

	"course-access-platform/internal/clock"
	"course-access-platform/internal/config"
	"course-access-platform/internal/domain/ports/adapter"
	pg "course-access-platform/internal/infra/db/postgres"
	"course-access-platform/internal/infra/logging"
	"course-access-platform/internal/infra/mail"
	"course-access-platform/internal/infra/metrics"
	"course-access-platform/internal/infra/payment"
	red "course-access-platform/internal/infra/redis"
	"course-access-platform/internal/infra/sched"
	"course-access-platform/internal/infra/web"
	"course-access-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	if err := pg.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	orderRepo := pg.NewOrderRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Adapters ----
	gateway := payment.NewPaymobGateway(
		cfg.Payment.Paymob.SecretKey,
		cfg.Payment.Paymob.PublicKey,
		cfg.Payment.Paymob.IntegrationID,
		cfg.Payment.Paymob.IntentionURL,
		cfg.Payment.Paymob.CheckoutURL,
		cfg.Payment.Currency,
	)
	var mailer adapter.MailGateway
	if cfg.Mail.Disabled {
		mailer = mail.NewNoopMailer(logger)
	} else {
		mailer = mail.NewMailer(cfg.Mail.APIURL, cfg.Mail.APIKey, cfg.Mail.From, cfg.Mail.FromName, logger)
	}
	clk := clock.System()

	// ---- Use cases ----
	orderUC := usecase.NewOrderUseCase(orderRepo, userRepo, tm, gateway, mailer, clk, logger)
	reconcileUC := usecase.NewReconcileUseCase(orderRepo, userRepo, tm, mailer, clk, logger)
	pauseUC := usecase.NewPauseUseCase(userRepo, tm, mailer, clk, logger)
	standingUC := usecase.NewStandingUseCase(userRepo, orderUC, tm, mailer, clk, usecase.SweepTuning{
		BatchSize:  cfg.Sweep.BatchSize,
		BatchDelay: cfg.Sweep.BatchDelay,
		MailDelay:  cfg.Sweep.MailDelay,
	}, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.HTTP.JWTSecret, !cfg.Runtime.Dev, "", 24*time.Hour)
	srv := web.NewServer(orderUC, reconcileUC, pauseUC, standingUC, auth, cfg.Payment.Paymob.HMACSecret, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Sweep workers ----
	expiryWorker := sched.NewExpiryWorker(cfg.Sweep.ExpiryInterval, orderUC, locker, logger)
	janitorWorker := sched.NewJanitorWorker(cfg.Sweep.JanitorInterval, orderUC, locker, logger)
	standingWorker := sched.NewStandingWorker(cfg.Sweep.StandingInterval, standingUC, locker, logger)
	resumeWorker := sched.NewAutoResumeWorker(cfg.Sweep.AutoResumeInterval, pauseUC, locker, logger)
	go func() { _ = expiryWorker.Run(ctx) }()
	go func() { _ = janitorWorker.Run(ctx) }()
	go func() { _ = standingWorker.Run(ctx) }()
	go func() { _ = resumeWorker.Run(ctx) }()

	// ---- DB pool stats ----
	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
