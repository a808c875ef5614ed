package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-access-platform/internal/domain"
	"course-access-platform/internal/domain/model"
	"course-access-platform/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

const userColumns = `id, email, first_name, role, is_verified, current_level_id, status, suspended_at, suspension_reason, last_activity, has_used_inactivity_grace, is_voluntary_paused, pause_started_at, pause_scheduled_end, voluntary_pause_attempts, total_paused_days, pause_history, created_at, updated_at`

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	history, err := json.Marshal(u.PauseHistory)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO users (
  id, email, first_name, role, is_verified, current_level_id, status, suspended_at, suspension_reason, last_activity,
  has_used_inactivity_grace, is_voluntary_paused, pause_started_at, pause_scheduled_end, voluntary_pause_attempts,
  total_paused_days, pause_history, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (id) DO UPDATE SET
  email=$2, first_name=$3, role=$4, is_verified=$5, current_level_id=$6, status=$7, suspended_at=$8,
  suspension_reason=$9, last_activity=$10, has_used_inactivity_grace=$11, is_voluntary_paused=$12,
  pause_started_at=$13, pause_scheduled_end=$14, voluntary_pause_attempts=$15, total_paused_days=$16,
  pause_history=$17, updated_at=$19;`

	_, err = execSQL(ctx, r.pool, tx, q,
		u.ID, u.Email, u.FirstName, u.Role, u.IsVerified, u.CurrentLevelID, u.Status, u.SuspendedAt,
		u.SuspensionReason, u.LastActivity, u.HasUsedInactivityGrace, u.IsVoluntaryPaused, u.PauseStartedAt,
		u.PauseScheduledEndDate, u.VoluntaryPauseAttempts, u.TotalPausedDays, history, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				// unique email
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := forUpdate(`SELECT `+userColumns+` FROM users WHERE id=$1`, tx)
	return r.queryOne(ctx, tx, q+";", id)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	q := forUpdate(`SELECT `+userColumns+` FROM users WHERE email=$1`, tx)
	return r.queryOne(ctx, tx, q+";", email)
}

func (r *userRepo) ListInactiveSince(ctx context.Context, tx repository.Tx, cutoff time.Time, offset, limit int) ([]*model.User, error) {
	const q = `
SELECT ` + userColumns + `
  FROM users
 WHERE role <> 'admin'
   AND is_verified
   AND status = 'active'
   AND last_activity < $1
 ORDER BY last_activity ASC
 LIMIT $2 OFFSET $3;`
	return r.queryMany(ctx, tx, q, cutoff, limit, offset)
}

func (r *userRepo) ListPauseEndedBefore(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.User, error) {
	const q = `
SELECT ` + userColumns + `
  FROM users
 WHERE is_voluntary_paused
   AND pause_scheduled_end IS NOT NULL
   AND pause_scheduled_end <= $1
 ORDER BY pause_scheduled_end ASC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, now, limit)
}

func (r *userRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

func (r *userRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) ([]*model.User, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// scanUser works for both pgx.Row and pgx.Rows.
func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	var (
		role, status string
		history      []byte
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &role, &u.IsVerified, &u.CurrentLevelID, &status,
		&u.SuspendedAt, &u.SuspensionReason, &u.LastActivity, &u.HasUsedInactivityGrace, &u.IsVoluntaryPaused,
		&u.PauseStartedAt, &u.PauseScheduledEndDate, &u.VoluntaryPauseAttempts, &u.TotalPausedDays, &history,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.Status = model.UserStatus(status)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &u.PauseHistory); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return u, nil
}
