// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
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

var _ ReconcileUseCase = (*reconcileUC)(nil)

// CallbackEvent is the provider-agnostic shape of an authenticated
// payment notification, already past signature verification.
type CallbackEvent struct {
	PaymentID   string
	Success     bool
	AmountCents int64
	PayerEmail  string
}

type ReconcileUseCase interface {
	// HandleCallback reconciles one verified gateway notification against
	// the order book inside a single transaction.
	HandleCallback(ctx context.Context, ev CallbackEvent) error
	// HandleCallbackWithRetry wraps HandleCallback with a bounded retry
	// for the two transient races a webhook can lose: the pending order
	// not visible yet, and the status write not observed on read-back.
	HandleCallbackWithRetry(ctx context.Context, ev CallbackEvent) error
}

const (
	callbackMaxRetries   = 3
	callbackRetryBackoff = time.Second
)

type reconcileUC struct {
	orders repository.OrderRepository
	users  repository.UserRepository
	tm     repository.TransactionManager
	mail   adapter.MailGateway
	clk    clock.Clock
	log    *zerolog.Logger
}

func NewReconcileUseCase(
	orders repository.OrderRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	mail adapter.MailGateway,
	clk clock.Clock,
	logger *zerolog.Logger,
) *reconcileUC {
	ucLog := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{orders: orders, users: users, tm: tm, mail: mail, clk: clk, log: &ucLog}
}

func (u *reconcileUC) HandleCallback(ctx context.Context, ev CallbackEvent) error {
	email := model.NormalizeEmail(ev.PayerEmail)
	if email == "" {
		metrics.IncWebhook("user_unresolved")
		return domain.ErrUserNotResolved
	}
	user, err := u.users.FindByEmail(ctx, repository.NoTX, email)
	if err == domain.ErrNotFound {
		metrics.IncWebhook("user_unresolved")
		return domain.ErrUserNotResolved
	}
	if err != nil {
		return err
	}

	amount := wholeCurrency(ev.AmountCents)
	now := u.clk.Now()

	var completed *model.Order
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if !ev.Success {
			return u.recordFailure(ctx, tx, user.ID, amount, ev.PaymentID, now)
		}

		o, err := u.resolvePending(ctx, tx, user.ID, amount, ev.PaymentID)
		if err != nil || o == nil {
			return err // nil o with nil err means idempotent replay
		}

		if err := o.MarkCompleted(ev.PaymentID, now); err != nil {
			return err
		}
		if err := u.orders.Save(ctx, tx, o); err != nil {
			return err
		}

		// Read back before declaring the money reconciled.
		check, err := u.orders.FindByID(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if check.PaymentStatus != model.PaymentStatusCompleted {
			return domain.ErrStatusNotPersisted
		}
		completed = check
		return nil
	})
	if err != nil {
		return err
	}

	if completed != nil {
		metrics.IncWebhook("completed")
		metrics.IncPayment(string(model.PaymentStatusCompleted))
		u.log.Info().
			Str("order_id", completed.ID).
			Str("payment_id", ev.PaymentID).
			Str("user_id", user.ID).
			Msg("payment reconciled")
		// Mail is strictly best-effort and happens after commit.
		if mailErr := u.mail.Send(ctx, user.Email, adapter.MailPaymentSuccess, map[string]string{
			"name":     user.FirstName,
			"level_id": completed.LevelID,
		}); mailErr != nil {
			u.log.Warn().Err(mailErr).Str("user_id", user.ID).Msg("payment success mail failed")
		}
	} else {
		metrics.IncWebhook("replayed")
	}
	return nil
}

// resolvePending finds the order a successful notification belongs to.
// Exact (user, amount, pending) first; any pending order for the user as
// a fallback; then the completed-replay and conflict checks.
func (u *reconcileUC) resolvePending(ctx context.Context, tx repository.Tx, userID string, amount int64, paymentID string) (*model.Order, error) {
	o, err := u.orders.FindPendingByUserAmount(ctx, tx, userID, amount)
	if err == nil {
		return o, nil
	}
	if err != domain.ErrNotFound {
		return nil, err
	}

	o, err = u.orders.FindMostRecentPending(ctx, tx, userID)
	if err == nil {
		u.log.Warn().
			Str("user_id", userID).
			Int64("amount", amount).
			Int64("order_amount", o.Amount).
			Msg("amount mismatch, matched most recent pending order")
		return o, nil
	}
	if err != domain.ErrNotFound {
		return nil, err
	}

	// No pending order at all. A completed one for the same amount means
	// the provider re-delivered; any other state is a conflict.
	prior, err := u.orders.FindByUserAmount(ctx, tx, userID, amount)
	if err == domain.ErrNotFound {
		metrics.IncWebhook("no_pending")
		return nil, domain.ErrNoPendingOrder
	}
	if err != nil {
		return nil, err
	}
	if prior.PaymentStatus == model.PaymentStatusCompleted {
		if prior.PaymentID != nil && *prior.PaymentID != paymentID {
			metrics.IncWebhook("conflict")
			return nil, domain.ErrPaymentIDConflict
		}
		return nil, nil // replay
	}
	metrics.IncWebhook("conflict")
	return nil, domain.ErrOrderStateConflict
}

func (u *reconcileUC) recordFailure(ctx context.Context, tx repository.Tx, userID string, amount int64, paymentID string, now time.Time) error {
	o, err := u.orders.FindPendingByUserAmount(ctx, tx, userID, amount)
	if err == domain.ErrNotFound {
		// Nothing to fail, the janitor or a prior callback already
		// cleaned up.
		metrics.IncWebhook("failed_no_order")
		return nil
	}
	if err != nil {
		return err
	}
	o.MarkFailed(paymentID, now)
	if err := u.orders.Save(ctx, tx, o); err != nil {
		return err
	}
	metrics.IncWebhook("failed")
	metrics.IncPayment(string(model.PaymentStatusFailed))
	return nil
}

func (u *reconcileUC) HandleCallbackWithRetry(ctx context.Context, ev CallbackEvent) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = u.HandleCallback(ctx, ev)
		if err == nil {
			return nil
		}
		if !retryableCallbackErr(err) || attempt >= callbackMaxRetries {
			return err
		}
		u.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Str("payment_id", ev.PaymentID).
			Msg("callback reconciliation retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(callbackRetryBackoff):
		}
	}
}

func retryableCallbackErr(err error) bool {
	return errors.Is(err, domain.ErrNoPendingOrder) || errors.Is(err, domain.ErrStatusNotPersisted)
}
