package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-access-platform/internal/infra/redis"
	"course-access-platform/internal/usecase"
)

// JanitorWorker deletes pending orders abandoned at checkout, so an old
// pending row never blocks a future purchase.
type JanitorWorker struct {
	interval time.Duration
	orderUC  usecase.OrderUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewJanitorWorker(interval time.Duration, orderUC usecase.OrderUseCase, locker redis.Locker, logger *zerolog.Logger) *JanitorWorker {
	jLog := logger.With().Str("component", "JanitorWorker").Logger()
	return &JanitorWorker{
		interval: interval,
		orderUC:  orderUC,
		locker:   locker,
		log:      &jLog,
	}
}

func (w *JanitorWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting janitor worker")
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping janitor worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *JanitorWorker) tick(ctx context.Context) {
	runLocked(ctx, w.locker, "stale_orders", 10*time.Minute, w.log, func(ctx context.Context) error {
		n, err := w.orderUC.DeleteStalePending(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			w.log.Info().Int("count", n).Msg("stale pending orders deleted")
		}
		return nil
	})
}
