// Package sched runs the periodic sweeps: access expiry, the stale-order
// janitor, the inactivity standing sweep and the pause auto-resume. Each
// worker ticks on its own interval and guards every run with a redis
// lock so only one instance sweeps at a time.
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"course-access-platform/internal/domain"
	"course-access-platform/internal/infra/metrics"
	"course-access-platform/internal/infra/redis"
)

// runLocked executes fn under the named lock, recording job metrics. A
// held lock means another instance owns this tick; that is a skip, not a
// failure.
func runLocked(ctx context.Context, locker redis.Locker, name string, ttl time.Duration, log *zerolog.Logger, fn func(ctx context.Context) error) {
	key := "sweep:" + name
	token, err := locker.TryLock(ctx, key, ttl)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			metrics.IncJobRun(name, "locked")
			log.Debug().Str("job", name).Msg("sweep already running elsewhere, skipping tick")
			return
		}
		metrics.IncJobRun(name, "error")
		log.Error().Err(err).Str("job", name).Msg("sweep lock error")
		return
	}
	defer func() {
		if err := locker.Unlock(ctx, key, token); err != nil {
			log.Warn().Err(err).Str("job", name).Msg("sweep unlock failed")
		}
	}()

	start := time.Now()
	err = fn(ctx)
	metrics.ObserveJobDuration(name, time.Since(start).Seconds())
	if err != nil {
		metrics.IncJobRun(name, "error")
		log.Error().Err(err).Str("job", name).Msg("sweep failed")
		return
	}
	metrics.IncJobRun(name, "ok")
}
