package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Order lifecycle
	ErrActiveOrderExists  = errors.New("user already holds an active completed order for this level")
	ErrNoPendingOrder     = errors.New("no matching pending order found")
	ErrPaymentIDConflict  = errors.New("order already completed with a different payment id")
	ErrOrderNotRefundable = errors.New("only completed orders can be refunded")
	ErrOrderStateConflict = errors.New("order exists in a conflicting state")
	ErrStatusNotPersisted = errors.New("order status update did not persist")
	ErrUserNotResolved    = errors.New("payer email does not resolve to a known user")

	// Standing / pause
	ErrCommitmentRequired    = errors.New("reactivation requires accepting both commitment terms")
	ErrPauseDurationInvalid  = errors.New("pause duration must be between 1 and 20 days")
	ErrPauseAttemptsExceeded = errors.New("voluntary pause already used the maximum of 2 attempts")
	ErrPauseBudgetExceeded   = errors.New("pause day budget of 20 days would be exceeded")
	ErrNotPaused             = errors.New("subscription is not currently paused")

	// Infra-facing errors consumed by repositories and adapters
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")
	ErrGatewayTimeout     = errors.New("payment gateway request timed out")
	ErrBadSignature       = errors.New("webhook signature mismatch")
	ErrLockNotAcquired    = errors.New("job lock not acquired")
)
