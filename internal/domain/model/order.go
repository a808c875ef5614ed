package model

import (
	"time"

	"course-access-platform/internal/domain"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // checkout started; awaiting gateway confirmation
	PaymentStatusCompleted PaymentStatus = "completed" // gateway confirmed; access window opened
	PaymentStatusFailed    PaymentStatus = "failed"    // gateway reported failure
	PaymentStatusRefunded  PaymentStatus = "refunded"  // refunded after completion
)

type AccessStatus string

const (
	AccessStatusActive  AccessStatus = "active"
	AccessStatusExpired AccessStatus = "expired"
)

// AccessWindowDays is the entitlement period opened at the
// pending->completed transition.
const AccessWindowDays = 60

// Order records a single purchase attempt for one course level.
// AccessStatus is meaningful only once PaymentStatus is completed.
type Order struct {
	ID              string
	UserID          string
	LevelID         string
	Amount          int64 // whole-currency units; minor units are a gateway-boundary concern
	PaymentStatus   PaymentStatus
	AccessStatus    AccessStatus
	PaymentDate     *time.Time // instant of the last completion, reset each completion
	AccessExpiresAt *time.Time // PaymentDate + 60 days, set at completion
	PaymentID       *string    // external gateway reference; unique when present
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewPendingOrder(userID, levelID string, amount int64, now time.Time) (*Order, error) {
	if userID == "" || levelID == "" || amount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		LevelID:       levelID,
		Amount:        amount,
		PaymentStatus: PaymentStatusPending,
		AccessStatus:  AccessStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MarkCompleted applies the pending->completed transition. Replaying it
// with the same payment id is a no-op; a different id on an already
// completed order is a conflict.
func (o *Order) MarkCompleted(paymentID string, now time.Time) error {
	if o.PaymentStatus == PaymentStatusCompleted {
		if o.PaymentID != nil && *o.PaymentID == paymentID {
			return nil
		}
		return domain.ErrPaymentIDConflict
	}
	expires := now.Add(AccessWindowDays * 24 * time.Hour)
	o.PaymentStatus = PaymentStatusCompleted
	o.AccessStatus = AccessStatusActive
	o.PaymentDate = &now
	o.AccessExpiresAt = &expires
	o.PaymentID = &paymentID
	o.UpdatedAt = now
	return nil
}

func (o *Order) MarkFailed(paymentID string, now time.Time) {
	o.PaymentStatus = PaymentStatusFailed
	if paymentID != "" {
		o.PaymentID = &paymentID
	}
	o.UpdatedAt = now
}

// MarkRefunded is only legal from completed.
func (o *Order) MarkRefunded(now time.Time) error {
	if o.PaymentStatus != PaymentStatusCompleted {
		return domain.ErrOrderNotRefundable
	}
	o.PaymentStatus = PaymentStatusRefunded
	o.UpdatedAt = now
	return nil
}

// HasActiveAccess is the single entitlement predicate: a completed order
// whose access window has not been swept to expired.
func (o *Order) HasActiveAccess() bool {
	return o.PaymentStatus == PaymentStatusCompleted && o.AccessStatus == AccessStatusActive
}

// AccessInfo is the read-side view of the most recent order for a level.
// IsExpired is computed lazily against the clock so a stale sweep cannot
// produce an incorrect read.
type AccessInfo struct {
	LevelID      string
	HasPurchase  bool
	PurchaseDate time.Time
	ExpiresAt    time.Time
	DaysElapsed  int
	DaysLeft     int
	IsExpired    bool
}
