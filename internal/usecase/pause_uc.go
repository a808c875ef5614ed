// File: internal/usecase/pause_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-access-platform/internal/clock"
	"course-access-platform/internal/domain"
	"course-access-platform/internal/domain/model"
	"course-access-platform/internal/domain/ports/adapter"
	"course-access-platform/internal/domain/ports/repository"
	"course-access-platform/internal/infra/metrics"
)

var _ PauseUseCase = (*pauseUC)(nil)

type PauseUseCase interface {
	// VoluntaryPause freezes the account for up to durationDays, charged
	// against the lifetime budget at resume time.
	VoluntaryPause(ctx context.Context, userID string, durationDays int) (*model.User, error)
	// VoluntaryResume closes the open pause window early (or on time) and
	// charges the days actually used, rounding any partial day up.
	// Returns the days charged.
	VoluntaryResume(ctx context.Context, userID string) (int, error)
	// ResumeDue resumes every voluntary pause whose scheduled end has
	// passed. Returns how many users were resumed.
	ResumeDue(ctx context.Context) (int, error)
}

// autoResumeBatch bounds one sweep pass; anything left over is picked up
// on the next tick.
const autoResumeBatch = 500

type pauseUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	mail  adapter.MailGateway
	clk   clock.Clock
	log   *zerolog.Logger
}

func NewPauseUseCase(
	users repository.UserRepository,
	tm repository.TransactionManager,
	mail adapter.MailGateway,
	clk clock.Clock,
	logger *zerolog.Logger,
) *pauseUC {
	ucLog := logger.With().Str("component", "PauseUC").Logger()
	return &pauseUC{users: users, tm: tm, mail: mail, clk: clk, log: &ucLog}
}

func (u *pauseUC) VoluntaryPause(ctx context.Context, userID string, durationDays int) (*model.User, error) {
	var paused *model.User
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := u.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := user.BeginVoluntaryPause(durationDays, u.clk.Now()); err != nil {
			if errors.Is(err, domain.ErrPauseBudgetExceeded) {
				return fmt.Errorf("%w: %d days remaining", err, user.PauseBudgetRemaining())
			}
			return err
		}
		if err := u.users.Save(ctx, tx, user); err != nil {
			return err
		}
		paused = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPause("voluntary")
	u.log.Info().Str("user_id", userID).Int("days", durationDays).Msg("voluntary pause started")
	if mailErr := u.mail.Send(ctx, paused.Email, adapter.MailPauseConfirmed, map[string]string{
		"name": paused.FirstName,
	}); mailErr != nil {
		u.log.Warn().Err(mailErr).Str("user_id", userID).Msg("pause confirmation mail failed")
	}
	return paused, nil
}

func (u *pauseUC) VoluntaryResume(ctx context.Context, userID string) (int, error) {
	days, user, err := u.resume(ctx, userID, "Manual Resume")
	if err != nil {
		return 0, err
	}
	metrics.IncResume("manual")
	if mailErr := u.mail.Send(ctx, user.Email, adapter.MailResumeConfirmed, map[string]string{
		"name": user.FirstName,
	}); mailErr != nil {
		u.log.Warn().Err(mailErr).Str("user_id", userID).Msg("resume confirmation mail failed")
	}
	return days, nil
}

func (u *pauseUC) resume(ctx context.Context, userID, reason string) (int, *model.User, error) {
	var (
		days    int
		resumed *model.User
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := u.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !user.IsVoluntaryPaused || user.PauseStartedAt == nil {
			return domain.ErrNotPaused
		}
		now := u.clk.Now()
		days = clock.CeilDays(*user.PauseStartedAt, now)
		user.ClosePause(days, reason, true, now)
		if err := u.users.Save(ctx, tx, user); err != nil {
			return err
		}
		resumed = user
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	u.log.Info().Str("user_id", userID).Int("days_charged", days).Str("reason", reason).Msg("pause closed")
	return days, resumed, nil
}

func (u *pauseUC) ResumeDue(ctx context.Context) (int, error) {
	due, err := u.users.ListPauseEndedBefore(ctx, repository.NoTX, u.clk.Now(), autoResumeBatch)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, candidate := range due {
		if ctx.Err() != nil {
			return resumed, ctx.Err()
		}
		_, user, err := u.resume(ctx, candidate.ID, "Auto Resume")
		if err != nil {
			// One stuck row must not stall the sweep.
			u.log.Error().Err(err).Str("user_id", candidate.ID).Msg("auto-resume failed")
			metrics.IncResume("error")
			continue
		}
		resumed++
		metrics.IncResume("auto")
		if mailErr := u.mail.Send(ctx, user.Email, adapter.MailResumeConfirmed, map[string]string{
			"name": user.FirstName,
		}); mailErr != nil {
			u.log.Warn().Err(mailErr).Str("user_id", user.ID).Msg("resume confirmation mail failed")
		}
	}
	return resumed, nil
}
