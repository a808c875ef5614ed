// File: internal/usecase/standing_uc.go
package usecase

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-access-platform/internal/clock"
	"course-access-platform/internal/domain"
	"course-access-platform/internal/domain/model"
	"course-access-platform/internal/domain/ports/adapter"
	"course-access-platform/internal/domain/ports/repository"
	"course-access-platform/internal/infra/metrics"
)

var _ StandingUseCase = (*standingUC)(nil)

const (
	// suspendAfterDays is the inactivity threshold past which an account
	// is frozen until an explicit recommitment.
	suspendAfterDays = 65
	// nudgeEveryDays spaces the motivational reminders: one on each
	// whole-week anniversary of the last activity.
	nudgeEveryDays = 7
)

// Commitment carries the user's explicit recommitment answers required
// to lift a suspension. Both must be affirmed.
type Commitment struct {
	WillCare   bool `json:"will_care"`
	WillCommit bool `json:"will_commit"`
}

// SweepStats summarizes one inactivity sweep pass.
type SweepStats struct {
	Processed     int
	Suspended     int
	SuspendFailed int
	Nudged        int
	NudgeFailed   int
}

type StandingUseCase interface {
	// SweepInactive walks verified active non-admin users oldest activity
	// first, suspending past the hard threshold and nudging on weekly
	// anniversaries. Per-user failures are logged and counted, never
	// fatal to the sweep.
	SweepInactive(ctx context.Context) (SweepStats, error)
	// Reactivate lifts a suspension (or an open voluntary pause) after an
	// explicit two-part commitment, charging any open grace window to the
	// pause budget.
	Reactivate(ctx context.Context, userID string, c Commitment) (*model.User, error)
}

// SweepTuning is operator-configurable pacing for the inactivity sweep.
type SweepTuning struct {
	BatchSize  int
	BatchDelay time.Duration
	MailDelay  time.Duration
}

type standingUC struct {
	users   repository.UserRepository
	orderUC OrderUseCase
	tm      repository.TransactionManager
	mail    adapter.MailGateway
	clk     clock.Clock
	tuning  SweepTuning
	log     *zerolog.Logger
}

func NewStandingUseCase(
	users repository.UserRepository,
	orderUC OrderUseCase,
	tm repository.TransactionManager,
	mail adapter.MailGateway,
	clk clock.Clock,
	tuning SweepTuning,
	logger *zerolog.Logger,
) *standingUC {
	if tuning.BatchSize <= 0 {
		tuning.BatchSize = 100
	}
	ucLog := logger.With().Str("component", "StandingUC").Logger()
	return &standingUC{users: users, orderUC: orderUC, tm: tm, mail: mail, clk: clk, tuning: tuning, log: &ucLog}
}

func (u *standingUC) SweepInactive(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := u.clk.Now()
	// Nothing below a week of inactivity can trigger either action, so
	// the query can exclude it outright.
	cutoff := now.Add(-time.Duration(nudgeEveryDays) * 24 * time.Hour)

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch, err := u.users.ListInactiveSince(ctx, repository.NoTX, cutoff, offset, u.tuning.BatchSize)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}
		for _, user := range batch {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.Processed++
			u.sweepOne(ctx, user, now, &stats)
		}
		if len(batch) < u.tuning.BatchSize {
			break
		}
		offset += u.tuning.BatchSize
		sleep(ctx, u.tuning.BatchDelay)
	}

	u.log.Info().
		Int("processed", stats.Processed).
		Int("suspended", stats.Suspended).
		Int("suspend_failed", stats.SuspendFailed).
		Int("nudged", stats.Nudged).
		Int("nudge_failed", stats.NudgeFailed).
		Msg("inactivity sweep finished")
	return stats, nil
}

func (u *standingUC) sweepOne(ctx context.Context, user *model.User, now time.Time, stats *SweepStats) {
	days := clock.DaysSince(user.LastActivity, now)
	switch {
	case days >= suspendAfterDays:
		// Suspension always wins over a nudge on the same day.
		if err := u.suspend(ctx, user.ID, days); err != nil {
			stats.SuspendFailed++
			metrics.IncSuspension("error")
			u.log.Error().Err(err).Str("user_id", user.ID).Int("inactive_days", days).Msg("suspension failed")
			return
		}
		stats.Suspended++
		metrics.IncSuspension("suspended")
		if mailErr := u.mail.Send(ctx, user.Email, adapter.MailSuspension, map[string]string{
			"name": user.FirstName,
		}); mailErr != nil {
			u.log.Warn().Err(mailErr).Str("user_id", user.ID).Msg("suspension mail failed")
		}
		sleep(ctx, u.tuning.MailDelay)
	case days >= nudgeEveryDays && days%nudgeEveryDays == 0:
		if err := u.nudge(ctx, user, days); err != nil {
			stats.NudgeFailed++
			metrics.IncNudge("error")
			u.log.Error().Err(err).Str("user_id", user.ID).Int("inactive_days", days).Msg("nudge failed")
		} else {
			stats.Nudged++
			metrics.IncNudge("sent")
		}
		sleep(ctx, u.tuning.MailDelay)
	}
}

func (u *standingUC) suspend(ctx context.Context, userID string, inactiveDays int) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := u.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		// The snapshot that selected this user may be stale under the
		// row lock.
		if user.Status != model.UserStatusActive {
			return nil
		}
		openGrace := !user.HasUsedInactivityGrace
		user.Suspend("Suspended for inactivity", openGrace, u.clk.Now())
		return u.users.Save(ctx, tx, user)
	})
}

func (u *standingUC) nudge(ctx context.Context, user *model.User, inactiveDays int) error {
	params := map[string]string{
		"name": user.FirstName,
	}
	if user.CurrentLevelID != "" {
		info, err := u.orderUC.AccessDetails(ctx, user.ID, user.CurrentLevelID)
		if err != nil {
			u.log.Warn().Err(err).Str("user_id", user.ID).Msg("could not derive days left for nudge")
		} else {
			params["days_left"] = strconv.Itoa(info.DaysLeft)
		}
	}
	return u.mail.Send(ctx, user.Email, adapter.MailMotivation, params)
}

func (u *standingUC) Reactivate(ctx context.Context, userID string, c Commitment) (*model.User, error) {
	if !c.WillCare || !c.WillCommit {
		return nil, domain.ErrCommitmentRequired
	}
	var reactivated *model.User
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := u.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := u.clk.Now()

		if user.Status == model.UserStatusActive && !user.IsVoluntaryPaused {
			reactivated = user
			return nil
		}

		if user.PauseStartedAt != nil {
			reason := "Reactivation from Inactivity Grace"
			if user.IsVoluntaryPaused {
				reason = "Reactivation from Manual Freeze"
			}
			days := clock.CeilDays(*user.PauseStartedAt, now)
			user.ClosePause(days, reason, user.IsVoluntaryPaused, now)
		}
		// Recommitting consumes the one-time grace even when suspension
		// never opened a window.
		user.HasUsedInactivityGrace = true
		user.ClearSuspension(now)
		if err := u.users.Save(ctx, tx, user); err != nil {
			return err
		}
		reactivated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncSuspension("reactivated")
	u.log.Info().Str("user_id", userID).Msg("account reactivated")
	if mailErr := u.mail.Send(ctx, reactivated.Email, adapter.MailReactivated, map[string]string{
		"name": reactivated.FirstName,
	}); mailErr != nil {
		u.log.Warn().Err(mailErr).Str("user_id", userID).Msg("reactivation mail failed")
	}
	return reactivated, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
