package adapter

import "context"

// CheckoutItem describes one line of a payment intention. Amounts are
// whole-currency units; the gateway adapter converts to the provider's
// minor-unit convention at its own boundary.
type CheckoutItem struct {
	Name        string
	Amount      int64
	Description string
	Quantity    int
}

type CheckoutRequest struct {
	Amount   int64
	Currency string
	Items    []CheckoutItem
	Payer    PayerDetails
}

type PayerDetails struct {
	FirstName string
	LastName  string
	Email     string
}

// PaymentGateway is the outbound side of the payment provider.
// Implementations must surface request timeouts as
// domain.ErrGatewayTimeout, distinct from validation failures.
type PaymentGateway interface {
	Name() string
	// CreateIntention registers a payment intention and returns the
	// provider-hosted checkout URL.
	CreateIntention(ctx context.Context, req CheckoutRequest) (checkoutURL string, err error)
	// VerifyTransaction fetches the provider's view of a transaction for
	// operational verification.
	VerifyTransaction(ctx context.Context, paymentID string) (TransactionStatus, error)
}

type TransactionStatus struct {
	PaymentID   string
	Success     bool
	Pending     bool
	AmountCents int64
	Raw         map[string]interface{}
}
