package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-access-platform/internal/infra/redis"
	"course-access-platform/internal/usecase"
)

// StandingWorker drives the daily inactivity sweep: suspensions past the
// hard threshold and motivational nudges on weekly anniversaries.
type StandingWorker struct {
	interval   time.Duration
	standingUC usecase.StandingUseCase
	locker     redis.Locker
	log        *zerolog.Logger
}

func NewStandingWorker(interval time.Duration, standingUC usecase.StandingUseCase, locker redis.Locker, logger *zerolog.Logger) *StandingWorker {
	sLog := logger.With().Str("component", "StandingWorker").Logger()
	return &StandingWorker{
		interval:   interval,
		standingUC: standingUC,
		locker:     locker,
		log:        &sLog,
	}
}

func (w *StandingWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting standing worker")
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping standing worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StandingWorker) tick(ctx context.Context) {
	// The sweep walks the whole inactive population with inter-batch
	// delays; the lock TTL has to outlive a large run.
	runLocked(ctx, w.locker, "inactivity_standing", time.Hour, w.log, func(ctx context.Context) error {
		stats, err := w.standingUC.SweepInactive(ctx)
		if err != nil {
			return err
		}
		if stats.Processed > 0 {
			w.log.Info().
				Int("processed", stats.Processed).
				Int("suspended", stats.Suspended).
				Int("nudged", stats.Nudged).
				Msg("standing sweep tick done")
		}
		return nil
	})
}
