package model

import (
	"errors"
	"testing"
	"time"

	"course-access-platform/internal/domain"
)

func TestNewPendingOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		o, err := NewPendingOrder("user-1", "level-1", 500, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if o.PaymentStatus != PaymentStatusPending {
			t.Errorf("expected pending, got %s", o.PaymentStatus)
		}
		if o.ID == "" {
			t.Error("expected generated id")
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		cases := []struct {
			user, level string
			amount      int64
		}{
			{"", "level-1", 500},
			{"user-1", "", 500},
			{"user-1", "level-1", -1},
		}
		for _, tc := range cases {
			if _, err := NewPendingOrder(tc.user, tc.level, tc.amount, now); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("(%q,%q,%d): expected ErrInvalidArgument, got %v", tc.user, tc.level, tc.amount, err)
			}
		}
	})
}

func TestOrder_MarkCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("opens the access window", func(t *testing.T) {
		o, _ := NewPendingOrder("user-1", "level-1", 500, now)
		if err := o.MarkCompleted("pm-1", now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if o.PaymentStatus != PaymentStatusCompleted {
			t.Errorf("expected completed, got %s", o.PaymentStatus)
		}
		want := now.Add(AccessWindowDays * 24 * time.Hour)
		if o.AccessExpiresAt == nil || !o.AccessExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, o.AccessExpiresAt)
		}
		if !o.HasActiveAccess() {
			t.Error("expected active access")
		}
	})

	t.Run("same payment id replays as a no-op", func(t *testing.T) {
		o, _ := NewPendingOrder("user-1", "level-1", 500, now)
		_ = o.MarkCompleted("pm-1", now)
		firstExpiry := *o.AccessExpiresAt

		if err := o.MarkCompleted("pm-1", now.Add(time.Hour)); err != nil {
			t.Fatalf("replay must be a no-op, got %v", err)
		}
		if !o.AccessExpiresAt.Equal(firstExpiry) {
			t.Error("replay must not move the expiry")
		}
	})

	t.Run("a different payment id is a conflict", func(t *testing.T) {
		o, _ := NewPendingOrder("user-1", "level-1", 500, now)
		_ = o.MarkCompleted("pm-1", now)

		if err := o.MarkCompleted("pm-2", now); !errors.Is(err, domain.ErrPaymentIDConflict) {
			t.Fatalf("expected ErrPaymentIDConflict, got %v", err)
		}
	})
}

func TestOrder_MarkRefunded(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("legal only from completed", func(t *testing.T) {
		o, _ := NewPendingOrder("user-1", "level-1", 500, now)
		if err := o.MarkRefunded(now); !errors.Is(err, domain.ErrOrderNotRefundable) {
			t.Fatalf("expected ErrOrderNotRefundable from pending, got %v", err)
		}

		_ = o.MarkCompleted("pm-1", now)
		if err := o.MarkRefunded(now); err != nil {
			t.Fatalf("expected refund from completed, got %v", err)
		}
		if o.PaymentStatus != PaymentStatusRefunded {
			t.Errorf("expected refunded, got %s", o.PaymentStatus)
		}

		if err := o.MarkRefunded(now); !errors.Is(err, domain.ErrOrderNotRefundable) {
			t.Fatalf("expected double refund rejected, got %v", err)
		}
	})
}

func TestOrder_HasActiveAccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	o, _ := NewPendingOrder("user-1", "level-1", 500, now)
	if o.HasActiveAccess() {
		t.Error("pending must not grant access")
	}
	_ = o.MarkCompleted("pm-1", now)
	if !o.HasActiveAccess() {
		t.Error("completed+active must grant access")
	}
	o.AccessStatus = AccessStatusExpired
	if o.HasActiveAccess() {
		t.Error("expired must not grant access")
	}
}
