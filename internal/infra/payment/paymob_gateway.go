package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"course-access-platform/internal/domain"
	"course-access-platform/internal/domain/ports/adapter"
)

// requestTimeout bounds every call to the provider. Timeouts surface as
// domain.ErrGatewayTimeout so callers can map them to 504 instead of a
// generic upstream error.
const requestTimeout = 10 * time.Second

const transactionsURL = "https://accept.paymob.com/api/acceptance/transactions/"

var _ adapter.PaymentGateway = (*PaymobGateway)(nil)

// PaymobGateway implements adapter.PaymentGateway against the Paymob
// unified-intention API.
type PaymobGateway struct {
	secretKey     string
	publicKey     string
	integrationID string
	intentionURL  string
	checkoutURL   string
	currency      string
	client        *http.Client
}

func NewPaymobGateway(secretKey, publicKey, integrationID, intentionURL, checkoutURL, currency string) *PaymobGateway {
	return &PaymobGateway{
		secretKey:     secretKey,
		publicKey:     publicKey,
		integrationID: integrationID,
		intentionURL:  intentionURL,
		checkoutURL:   checkoutURL,
		currency:      currency,
		client:        &http.Client{Timeout: requestTimeout},
	}
}

func (g *PaymobGateway) Name() string { return "paymob" }

type intentionItem struct {
	Name        string `json:"name"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
}

type intentionRequest struct {
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	PaymentMethods []string        `json:"payment_methods"`
	Items          []intentionItem `json:"items"`
	BillingData    billingData     `json:"billing_data"`
}

type billingData struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type intentionResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// CreateIntention registers the payment with Paymob and returns the
// hosted checkout URL. Amounts enter in whole currency and leave in the
// provider's minor units.
func (g *PaymobGateway) CreateIntention(ctx context.Context, req adapter.CheckoutRequest) (string, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.currency
	}
	items := make([]intentionItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, intentionItem{
			Name:        it.Name,
			Amount:      it.Amount * 100,
			Description: it.Description,
			Quantity:    it.Quantity,
		})
	}
	payload := intentionRequest{
		Amount:         req.Amount * 100,
		Currency:       currency,
		PaymentMethods: []string{g.integrationID},
		Items:          items,
		BillingData: billingData{
			FirstName: req.Payer.FirstName,
			LastName:  req.Payer.LastName,
			Email:     req.Payer.Email,
		},
	}

	var out intentionResponse
	if err := g.doJSON(ctx, http.MethodPost, g.intentionURL, payload, &out); err != nil {
		return "", err
	}
	if out.ClientSecret == "" {
		return "", fmt.Errorf("paymob intention response missing client_secret")
	}
	return fmt.Sprintf("%s?publicKey=%s&clientSecret=%s", g.checkoutURL, g.publicKey, out.ClientSecret), nil
}

// VerifyTransaction fetches the provider's view of a transaction for
// operational verification; it never mutates local state.
func (g *PaymobGateway) VerifyTransaction(ctx context.Context, paymentID string) (adapter.TransactionStatus, error) {
	var out map[string]interface{}
	if err := g.doJSON(ctx, http.MethodGet, transactionsURL+paymentID, nil, &out); err != nil {
		return adapter.TransactionStatus{}, err
	}
	st := adapter.TransactionStatus{PaymentID: paymentID, Raw: out}
	if v, ok := out["success"].(bool); ok {
		st.Success = v
	}
	if v, ok := out["pending"].(bool); ok {
		st.Pending = v
	}
	if v, ok := out["amount_cents"].(float64); ok {
		st.AmountCents = int64(v)
	}
	return st, nil
}

func (g *PaymobGateway) doJSON(ctx context.Context, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return domain.ErrGatewayTimeout
		}
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paymob %s %s: status %d: %s", method, url, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("paymob response decode: %w, body: %s", err, string(raw))
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
