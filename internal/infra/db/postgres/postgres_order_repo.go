package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-access-platform/internal/domain"
	"course-access-platform/internal/domain/model"
	"course-access-platform/internal/domain/ports/repository"
)

// Ensure orderRepo implements repository.OrderRepository
var _ repository.OrderRepository = (*orderRepo)(nil)

const orderColumns = `id, user_id, level_id, amount, payment_status, access_status, payment_date, access_expires_at, payment_id, created_at, updated_at`

type orderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (
  id, user_id, level_id, amount, payment_status, access_status, payment_date, access_expires_at, payment_id, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  amount=$4, payment_status=$5, access_status=$6, payment_date=$7, access_expires_at=$8, payment_id=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.UserID, o.LevelID, o.Amount, o.PaymentStatus, o.AccessStatus, o.PaymentDate, o.AccessExpiresAt, o.PaymentID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				// unique payment_id
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := forUpdate(`SELECT `+orderColumns+` FROM orders WHERE id=$1`, tx)
	return r.queryOne(ctx, tx, q+";", id)
}

func (r *orderRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Order, error) {
	q := forUpdate(`SELECT `+orderColumns+` FROM orders WHERE payment_id=$1`, tx)
	return r.queryOne(ctx, tx, q+";", paymentID)
}

func (r *orderRepo) FindPendingByUserLevel(ctx context.Context, tx repository.Tx, userID, levelID string) (*model.Order, error) {
	q := forUpdate(`
SELECT `+orderColumns+`
  FROM orders
 WHERE user_id=$1 AND level_id=$2 AND payment_status='pending'
 ORDER BY created_at DESC
 LIMIT 1`, tx)
	return r.queryOne(ctx, tx, q+";", userID, levelID)
}

func (r *orderRepo) FindPendingByUserAmount(ctx context.Context, tx repository.Tx, userID string, amount int64) (*model.Order, error) {
	q := forUpdate(`
SELECT `+orderColumns+`
  FROM orders
 WHERE user_id=$1 AND amount=$2 AND payment_status='pending'
 ORDER BY created_at DESC
 LIMIT 1`, tx)
	return r.queryOne(ctx, tx, q+";", userID, amount)
}

func (r *orderRepo) FindMostRecentPending(ctx context.Context, tx repository.Tx, userID string) (*model.Order, error) {
	q := forUpdate(`
SELECT `+orderColumns+`
  FROM orders
 WHERE user_id=$1 AND payment_status='pending'
 ORDER BY created_at DESC
 LIMIT 1`, tx)
	return r.queryOne(ctx, tx, q+";", userID)
}

func (r *orderRepo) FindByUserAmount(ctx context.Context, tx repository.Tx, userID string, amount int64) (*model.Order, error) {
	q := forUpdate(`
SELECT `+orderColumns+`
  FROM orders
 WHERE user_id=$1 AND amount=$2
 ORDER BY created_at DESC
 LIMIT 1`, tx)
	return r.queryOne(ctx, tx, q+";", userID, amount)
}

func (r *orderRepo) FindActiveCompleted(ctx context.Context, tx repository.Tx, userID, levelID string) (*model.Order, error) {
	q := forUpdate(`
SELECT `+orderColumns+`
  FROM orders
 WHERE user_id=$1 AND level_id=$2 AND payment_status='completed' AND access_status='active'
 ORDER BY created_at DESC
 LIMIT 1`, tx)
	return r.queryOne(ctx, tx, q+";", userID, levelID)
}

func (r *orderRepo) FindMostRecent(ctx context.Context, tx repository.Tx, userID, levelID string) (*model.Order, error) {
	q := forUpdate(`
SELECT `+orderColumns+`
  FROM orders
 WHERE user_id=$1 AND level_id=$2
 ORDER BY created_at DESC
 LIMIT 1`, tx)
	return r.queryOne(ctx, tx, q+";", userID, levelID)
}

func (r *orderRepo) MarkExpiredCutoff(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	const q = `
UPDATE orders
   SET access_status='expired', updated_at=NOW()
 WHERE payment_status='completed'
   AND access_status='active'
   AND access_expires_at IS NOT NULL
   AND access_expires_at < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return 0, err
		default:
			return 0, domain.ErrOperationFailed
		}
	}
	return int(tag.RowsAffected()), nil
}

func (r *orderRepo) DeletePendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	const q = `DELETE FROM orders WHERE payment_status='pending' AND created_at < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return 0, err
		default:
			return 0, domain.ErrOperationFailed
		}
	}
	return int(tag.RowsAffected()), nil
}

func (r *orderRepo) Search(ctx context.Context, tx repository.Tx, f repository.OrderFilter) ([]*model.Order, int, error) {
	where, args := buildOrderFilter(f)

	countQ := `SELECT COUNT(*) FROM orders` + where + `;`
	row, err := pickRow(ctx, r.pool, tx, countQ, args...)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	q := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}
	rows, err := queryRows(ctx, r.pool, tx, q+";", args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, 0, err
		default:
			return nil, 0, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}
	return out, total, nil
}

func buildOrderFilter(f repository.OrderFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		add("user_id=", f.UserID)
	}
	if f.PaymentID != "" {
		add("payment_id=", f.PaymentID)
	}
	if f.PaymentStatus != "" {
		add("payment_status=", f.PaymentStatus)
	}
	if !f.PaidFrom.IsZero() {
		add("payment_date>=", f.PaidFrom)
	}
	if !f.PaidTo.IsZero() {
		add("payment_date<", f.PaidTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *orderRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.Order, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanOrderRow(row)
}

func scanOrderRow(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var paymentStatus, accessStatus string
	if err := row.Scan(&o.ID, &o.UserID, &o.LevelID, &o.Amount, &paymentStatus, &accessStatus, &o.PaymentDate, &o.AccessExpiresAt, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.AccessStatus = model.AccessStatus(accessStatus)
	return o, nil
}

func scanOrder(rows pgx.Rows) (*model.Order, error) {
	o := &model.Order{}
	var paymentStatus, accessStatus string
	if err := rows.Scan(&o.ID, &o.UserID, &o.LevelID, &o.Amount, &paymentStatus, &accessStatus, &o.PaymentDate, &o.AccessExpiresAt, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.AccessStatus = model.AccessStatus(accessStatus)
	return o, nil
}
