package repository

import (
	"context"
	"time"

	"course-access-platform/internal/domain/model"
)

// UserRepository owns the account-standing record. Standing mutations go
// through the standing and pause use cases only.
type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// FindByEmail expects a normalized address (model.NormalizeEmail).
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)

	// ListInactiveSince returns verified, active, non-admin users whose
	// lastActivity precedes the cutoff, oldest first, for batched sweeps.
	ListInactiveSince(ctx context.Context, tx Tx, cutoff time.Time, offset, limit int) ([]*model.User, error)
	// ListPauseEndedBefore returns voluntarily paused users whose
	// scheduled end has passed, for the auto-resume sweep.
	ListPauseEndedBefore(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.User, error)
}
