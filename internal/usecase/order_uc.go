// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"fmt"
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

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type OrderUseCase interface {
	// Checkout verifies no active completed order exists for (user, level),
	// registers a payment intention with the gateway and upserts the
	// pending order, all within one transaction. Returns the
	// provider-hosted checkout URL.
	Checkout(ctx context.Context, userID, levelID string, amount int64) (string, error)

	// TransitionToCompleted applies the pending->completed transition and
	// opens the access window. Idempotent for the same external payment
	// id; a different id on a completed order is a conflict.
	TransitionToCompleted(ctx context.Context, tx repository.Tx, orderID, paymentID string) (*model.Order, error)
	TransitionToFailed(ctx context.Context, tx repository.Tx, orderID, paymentID string) (*model.Order, error)
	// Refund locates the order by external payment id; legal only from
	// completed.
	Refund(ctx context.Context, paymentID string) (*model.Order, error)

	// FindActiveAccess is the single present-tense entitlement predicate:
	// completed AND active, most recent first.
	FindActiveAccess(ctx context.Context, userID, levelID string) (*model.Order, error)
	// AccessDetails derives the read-side access view from the most
	// recent order. Expiry is computed against the clock, so a sweeper
	// that has not run yet cannot produce an incorrect read.
	AccessDetails(ctx context.Context, userID, levelID string) (*model.AccessInfo, error)

	// ExpireOverdue bulk-transitions orders whose access window elapsed.
	// Safe to re-run: already-expired rows no longer match.
	ExpireOverdue(ctx context.Context) (int, error)
	// DeleteStalePending removes pending orders older than 24h so an
	// abandoned checkout cannot block a future purchase.
	DeleteStalePending(ctx context.Context) (int, error)

	// Admin reporting surface.
	SearchOrders(ctx context.Context, f repository.OrderFilter) ([]*model.Order, int, error)
	OrdersReport(ctx context.Context, period string) ([]*model.Order, error)
	VerifyPaymentStatus(ctx context.Context, paymentID string) (adapter.TransactionStatus, *model.Order, error)
}

// stalePendingAge is how old a pending order must be before the janitor
// deletes it.
const stalePendingAge = 24 * time.Hour

type orderUC struct {
	orders  repository.OrderRepository
	users   repository.UserRepository
	tm      repository.TransactionManager
	gateway adapter.PaymentGateway
	mail    adapter.MailGateway
	clk     clock.Clock
	log     *zerolog.Logger
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	mail adapter.MailGateway,
	clk clock.Clock,
	logger *zerolog.Logger,
) *orderUC {
	ucLog := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{orders: orders, users: users, tm: tm, gateway: gateway, mail: mail, clk: clk, log: &ucLog}
}

func (u *orderUC) Checkout(ctx context.Context, userID, levelID string, amount int64) (string, error) {
	if userID == "" || levelID == "" || amount < 0 {
		return "", domain.ErrInvalidArgument
	}
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return "", err
	}

	var checkoutURL string
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// The duplicate-purchase check and the upsert must share one
		// transaction, or two concurrent checkouts could both pass the
		// check. An expired order does not block repurchase.
		if _, err := u.orders.FindActiveCompleted(ctx, tx, userID, levelID); err == nil {
			return domain.ErrActiveOrderExists
		} else if err != domain.ErrNotFound {
			return err
		}

		url, err := u.gateway.CreateIntention(ctx, adapter.CheckoutRequest{
			Amount: amount,
			Items: []adapter.CheckoutItem{{
				Name:     levelID,
				Amount:   amount,
				Quantity: 1,
			}},
			Payer: adapter.PayerDetails{FirstName: user.FirstName, Email: user.Email},
		})
		if err != nil {
			return err
		}
		checkoutURL = url

		if _, err := u.upsertPending(ctx, tx, userID, levelID, amount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	metrics.IncOrder("checkout")
	return checkoutURL, nil
}

// upsertPending updates the single pending row for (user, level) in place
// (last writer wins on amount), or inserts a new one.
func (u *orderUC) upsertPending(ctx context.Context, tx repository.Tx, userID, levelID string, amount int64) (*model.Order, error) {
	now := u.clk.Now()
	existing, err := u.orders.FindPendingByUserLevel(ctx, tx, userID, levelID)
	switch err {
	case nil:
		existing.Amount = amount
		existing.PaymentDate = &now
		existing.UpdatedAt = now
		if err := u.orders.Save(ctx, tx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case domain.ErrNotFound:
		o, err := model.NewPendingOrder(userID, levelID, amount, now)
		if err != nil {
			return nil, err
		}
		if err := u.orders.Save(ctx, tx, o); err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, err
	}
}

func (u *orderUC) TransitionToCompleted(ctx context.Context, tx repository.Tx, orderID, paymentID string) (*model.Order, error) {
	o, err := u.orders.FindByID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.MarkCompleted(paymentID, u.clk.Now()); err != nil {
		return nil, err
	}
	if err := u.orders.Save(ctx, tx, o); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusCompleted))
	return o, nil
}

func (u *orderUC) TransitionToFailed(ctx context.Context, tx repository.Tx, orderID, paymentID string) (*model.Order, error) {
	o, err := u.orders.FindByID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	o.MarkFailed(paymentID, u.clk.Now())
	if err := u.orders.Save(ctx, tx, o); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusFailed))
	return o, nil
}

func (u *orderUC) Refund(ctx context.Context, paymentID string) (*model.Order, error) {
	if paymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var refunded *model.Order
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByPaymentID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if err := o.MarkRefunded(u.clk.Now()); err != nil {
			return err
		}
		if err := u.orders.Save(ctx, tx, o); err != nil {
			return err
		}
		refunded = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusRefunded))
	u.log.Info().Str("order_id", refunded.ID).Str("payment_id", paymentID).Msg("order refunded")
	return refunded, nil
}

func (u *orderUC) FindActiveAccess(ctx context.Context, userID, levelID string) (*model.Order, error) {
	return u.orders.FindActiveCompleted(ctx, repository.NoTX, userID, levelID)
}

func (u *orderUC) AccessDetails(ctx context.Context, userID, levelID string) (*model.AccessInfo, error) {
	o, err := u.orders.FindMostRecent(ctx, repository.NoTX, userID, levelID)
	if err == domain.ErrNotFound {
		return &model.AccessInfo{LevelID: levelID, HasPurchase: false}, nil
	}
	if err != nil {
		return nil, err
	}

	purchase := o.CreatedAt
	if o.PaymentDate != nil {
		purchase = *o.PaymentDate
	}
	expires := purchase.Add(model.AccessWindowDays * 24 * time.Hour)
	if o.AccessExpiresAt != nil {
		expires = *o.AccessExpiresAt
	}

	now := u.clk.Now()
	elapsed := clock.DaysSince(purchase, now)
	left := model.AccessWindowDays - elapsed
	if left < 0 {
		left = 0
	}
	return &model.AccessInfo{
		LevelID:      o.LevelID,
		HasPurchase:  o.PaymentStatus == model.PaymentStatusCompleted,
		PurchaseDate: purchase,
		ExpiresAt:    expires,
		DaysElapsed:  elapsed,
		DaysLeft:     left,
		IsExpired:    now.After(expires),
	}, nil
}

func (u *orderUC) ExpireOverdue(ctx context.Context) (int, error) {
	n, err := u.orders.MarkExpiredCutoff(ctx, repository.NoTX, u.clk.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddOrdersExpired(n)
	}
	return n, nil
}

func (u *orderUC) DeleteStalePending(ctx context.Context) (int, error) {
	cutoff := u.clk.Now().Add(-stalePendingAge)
	n, err := u.orders.DeletePendingOlderThan(ctx, repository.NoTX, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddStaleOrdersDeleted(n)
	}
	return n, nil
}

func (u *orderUC) SearchOrders(ctx context.Context, f repository.OrderFilter) ([]*model.Order, int, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	return u.orders.Search(ctx, repository.NoTX, f)
}

// OrdersReport returns all orders whose payment date falls in the named
// period, computed against the canonical clock with no base-date input.
func (u *orderUC) OrdersReport(ctx context.Context, period string) ([]*model.Order, error) {
	start, end, err := periodRange(period, u.clk.Now())
	if err != nil {
		return nil, err
	}
	out, _, err := u.orders.Search(ctx, repository.NoTX, repository.OrderFilter{
		PaidFrom: start,
		PaidTo:   end,
		Limit:    -1, // unpaginated
	})
	return out, err
}

func (u *orderUC) VerifyPaymentStatus(ctx context.Context, paymentID string) (adapter.TransactionStatus, *model.Order, error) {
	st, err := u.gateway.VerifyTransaction(ctx, paymentID)
	if err != nil {
		return adapter.TransactionStatus{}, nil, err
	}
	o, err := u.orders.FindByPaymentID(ctx, repository.NoTX, paymentID)
	if err == domain.ErrNotFound {
		return st, nil, nil
	}
	if err != nil {
		return st, nil, err
	}
	return st, o, nil
}

func periodRange(period string, base time.Time) (time.Time, time.Time, error) {
	y, m, d := base.Date()
	loc := base.Location()
	switch period {
	case "daily":
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1), nil
	case "weekly":
		// Monday is the first day of the week.
		weekday := (int(base.Weekday()) + 6) % 7
		start := time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -weekday)
		return start, start.AddDate(0, 0, 7), nil
	case "monthly":
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case "yearly":
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: period %q", domain.ErrInvalidArgument, period)
	}
}

// wholeCurrency converts the provider's minor units to the whole-currency
// integers this model stores, rounding halves up.
func wholeCurrency(cents int64) int64 {
	if cents < 0 {
		return -wholeCurrency(-cents)
	}
	return (cents + 50) / 100
}
