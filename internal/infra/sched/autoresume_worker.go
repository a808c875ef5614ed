package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-access-platform/internal/infra/redis"
	"course-access-platform/internal/usecase"
)

// AutoResumeWorker closes voluntary pauses whose scheduled end has
// passed, charging actual days used to the pause budget.
type AutoResumeWorker struct {
	interval time.Duration
	pauseUC  usecase.PauseUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewAutoResumeWorker(interval time.Duration, pauseUC usecase.PauseUseCase, locker redis.Locker, logger *zerolog.Logger) *AutoResumeWorker {
	rLog := logger.With().Str("component", "AutoResumeWorker").Logger()
	return &AutoResumeWorker{
		interval: interval,
		pauseUC:  pauseUC,
		locker:   locker,
		log:      &rLog,
	}
}

func (w *AutoResumeWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting auto-resume worker")
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping auto-resume worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *AutoResumeWorker) tick(ctx context.Context) {
	runLocked(ctx, w.locker, "pause_auto_resume", 10*time.Minute, w.log, func(ctx context.Context) error {
		n, err := w.pauseUC.ResumeDue(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			w.log.Info().Int("count", n).Msg("paused accounts resumed")
		}
		return nil
	})
}
