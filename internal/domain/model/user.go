package model

import (
	"strings"
	"time"

	"course-access-platform/internal/domain"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBlocked   UserStatus = "blocked"
)

// Lifetime limits on the voluntary-pause mechanism. The same day budget is
// shared by voluntary pauses and the one-time inactivity grace.
const (
	MaxPauseDays     = 20
	MaxPauseAttempts = 2
)

// PauseRecord is one closed pause window in the append-only history.
type PauseRecord struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Reason      string    `json:"reason"`
	IsVoluntary bool      `json:"isVoluntary"`
}

// User carries the account-standing state machine alongside identity.
type User struct {
	ID             string
	Email          string // stored normalized: trimmed, lowercased
	FirstName      string
	Role           Role
	IsVerified     bool
	CurrentLevelID string // level the user is currently studying; may be empty

	Status           UserStatus
	SuspendedAt      *time.Time
	SuspensionReason string
	LastActivity     time.Time

	HasUsedInactivityGrace bool

	IsVoluntaryPaused      bool
	PauseStartedAt         *time.Time
	PauseScheduledEndDate  *time.Time
	VoluntaryPauseAttempts int
	TotalPausedDays        int
	PauseHistory           []PauseRecord

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUser(id, email, firstName string, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &User{
		ID:           id,
		Email:        email,
		FirstName:    firstName,
		Role:         RoleUser,
		Status:       UserStatusActive,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail applies the canonical form used for provider payload
// matching: trim then lowercase.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

func (u *User) Touch(now time.Time) { u.LastActivity = now }

// PauseBudgetRemaining reports how many pause days are left in the
// lifetime budget.
func (u *User) PauseBudgetRemaining() int {
	left := MaxPauseDays - u.TotalPausedDays
	if left < 0 {
		return 0
	}
	return left
}

// CanVoluntaryPause checks the request against the attempt cap and the
// day budget without mutating anything.
func (u *User) CanVoluntaryPause(durationDays int) error {
	if durationDays <= 0 || durationDays > MaxPauseDays {
		return domain.ErrPauseDurationInvalid
	}
	if u.VoluntaryPauseAttempts >= MaxPauseAttempts {
		return domain.ErrPauseAttemptsExceeded
	}
	if u.TotalPausedDays+durationDays > MaxPauseDays {
		return domain.ErrPauseBudgetExceeded
	}
	if u.IsVoluntaryPaused {
		return domain.ErrAlreadyExists
	}
	return nil
}

// BeginVoluntaryPause opens the pause window and consumes an attempt.
// The day budget is charged at resume, from actual elapsed time.
func (u *User) BeginVoluntaryPause(durationDays int, now time.Time) error {
	if err := u.CanVoluntaryPause(durationDays); err != nil {
		return err
	}
	end := now.Add(time.Duration(durationDays) * 24 * time.Hour)
	u.IsVoluntaryPaused = true
	u.PauseStartedAt = &now
	u.PauseScheduledEndDate = &end
	u.VoluntaryPauseAttempts++
	u.UpdatedAt = now
	return nil
}

// ClosePause charges actualDays to the budget, appends the history
// record and clears the open window.
func (u *User) ClosePause(actualDays int, reason string, voluntary bool, now time.Time) {
	if u.PauseStartedAt != nil {
		u.PauseHistory = append(u.PauseHistory, PauseRecord{
			Start:       *u.PauseStartedAt,
			End:         now,
			Reason:      reason,
			IsVoluntary: voluntary,
		})
	}
	u.TotalPausedDays += actualDays
	if u.TotalPausedDays > MaxPauseDays {
		// Late resumes charge at most the remaining budget.
		u.TotalPausedDays = MaxPauseDays
	}
	u.IsVoluntaryPaused = false
	u.PauseStartedAt = nil
	u.PauseScheduledEndDate = nil
	u.Status = UserStatusActive
	u.UpdatedAt = now
}

// Suspend moves the account to suspended. When the inactivity grace has
// never been consumed, the suspension window starts counting against the
// pause budget (charged at reactivation).
func (u *User) Suspend(reason string, openGraceWindow bool, now time.Time) {
	u.Status = UserStatusSuspended
	u.SuspendedAt = &now
	u.SuspensionReason = reason
	if openGraceWindow {
		u.PauseStartedAt = &now
	}
	u.HasUsedInactivityGrace = true
	u.UpdatedAt = now
}

func (u *User) ClearSuspension(now time.Time) {
	u.Status = UserStatusActive
	u.SuspendedAt = nil
	u.SuspensionReason = ""
	u.LastActivity = now
	u.UpdatedAt = now
}
