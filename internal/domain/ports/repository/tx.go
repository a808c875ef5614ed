package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX marks the non-transactional path when calling repository methods.
var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the underlying transaction handle to the callback.
//
// Keeping the handle opaque keeps use-case interfaces clean: repositories
// accept a `tx Tx` argument and detect the concrete handle (pgx.Tx for
// Postgres) implementation-side, enabling SELECT ... FOR UPDATE where an
// invariant is read before a dependent write. Repositories MUST accept a
// nil tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
