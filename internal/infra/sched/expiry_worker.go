package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-access-platform/internal/infra/redis"
	"course-access-platform/internal/usecase"
)

// ExpiryWorker periodically sweeps completed orders whose access window
// has elapsed.
type ExpiryWorker struct {
	interval time.Duration
	orderUC  usecase.OrderUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, orderUC usecase.OrderUseCase, locker redis.Locker, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		orderUC:  orderUC,
		locker:   locker,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	// Run once on startup, then on every tick
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	runLocked(ctx, w.locker, "access_expiry", 10*time.Minute, w.log, func(ctx context.Context) error {
		n, err := w.orderUC.ExpireOverdue(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			w.log.Info().Int("count", n).Msg("access windows expired")
		}
		return nil
	})
}
