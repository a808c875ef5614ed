package repository

import (
	"context"
	"time"

	"course-access-platform/internal/domain/model"
)

// OrderRepository owns persistence of Order records. All state mutation
// flows through the order use case; no other component writes these rows.
type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Order, error)

	// FindPendingByUserLevel backs the checkout upsert: at most one
	// pending order exists per (user, level).
	FindPendingByUserLevel(ctx context.Context, tx Tx, userID, levelID string) (*model.Order, error)
	// FindPendingByUserAmount is the reconciler's primary match.
	FindPendingByUserAmount(ctx context.Context, tx Tx, userID string, amount int64) (*model.Order, error)
	// FindMostRecentPending is the reconciler's fallback when the amount
	// match fails (provider rounding / equal-amount collisions).
	FindMostRecentPending(ctx context.Context, tx Tx, userID string) (*model.Order, error)
	// FindByUserAmount matches any status; used for the idempotent-replay
	// check after both pending lookups miss.
	FindByUserAmount(ctx context.Context, tx Tx, userID string, amount int64) (*model.Order, error)

	// FindActiveCompleted returns the most recent order satisfying the
	// entitlement predicate for (user, level), or ErrNotFound.
	FindActiveCompleted(ctx context.Context, tx Tx, userID, levelID string) (*model.Order, error)
	// FindMostRecent returns the newest order for a user, optionally
	// filtered by level; backs the read-side access query.
	FindMostRecent(ctx context.Context, tx Tx, userID, levelID string) (*model.Order, error)

	// MarkExpiredCutoff bulk-transitions completed+active orders whose
	// access window elapsed. Returns rows affected; re-running matches
	// nothing, so overlapping sweeps are safe.
	MarkExpiredCutoff(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
	// DeletePendingOlderThan removes abandoned checkouts so they cannot
	// block future purchases or accumulate.
	DeletePendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time) (int, error)

	// Search backs the admin reporting surface.
	Search(ctx context.Context, tx Tx, f OrderFilter) ([]*model.Order, int, error)
}

// OrderFilter narrows admin searches. Zero values mean "any".
type OrderFilter struct {
	UserID        string
	PaymentID     string
	PaymentStatus model.PaymentStatus
	PaidFrom      time.Time
	PaidTo        time.Time
	Offset        int
	Limit         int
}
