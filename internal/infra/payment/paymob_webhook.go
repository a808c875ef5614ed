package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"

	"course-access-platform/internal/usecase"
)

// CallbackPayload mirrors the provider's transaction-processed webhook
// body, reduced to the fields the signature and reconciliation need.
type CallbackPayload struct {
	Obj CallbackTransaction `json:"obj"`
}

type CallbackTransaction struct {
	ID                   int64          `json:"id"`
	AmountCents          int64          `json:"amount_cents"`
	CreatedAt            string         `json:"created_at"`
	Currency             string         `json:"currency"`
	ErrorOccured         bool           `json:"error_occured"`
	HasParentTransaction bool           `json:"has_parent_transaction"`
	IntegrationID        int64          `json:"integration_id"`
	Is3DSecure           bool           `json:"is_3d_secure"`
	IsAuth               bool           `json:"is_auth"`
	IsCapture            bool           `json:"is_capture"`
	IsRefunded           bool           `json:"is_refunded"`
	IsStandalonePayment  bool           `json:"is_standalone_payment"`
	IsVoided             bool           `json:"is_voided"`
	Owner                int64          `json:"owner"`
	Pending              bool           `json:"pending"`
	Success              bool           `json:"success"`
	Order                CallbackOrder  `json:"order"`
	SourceData           SourceData     `json:"source_data"`
	PaymentKeyClaims     PaymentKeyData `json:"payment_key_claims"`
}

type CallbackOrder struct {
	ID           int64        `json:"id"`
	ShippingData ShippingData `json:"shipping_data"`
}

type ShippingData struct {
	Email string `json:"email"`
}

type SourceData struct {
	Pan     string `json:"pan"`
	SubType string `json:"sub_type"`
	Type    string `json:"type"`
}

type PaymentKeyData struct {
	BillingData BillingDataClaims `json:"billing_data"`
}

type BillingDataClaims struct {
	Email string `json:"email"`
}

// VerifySignature recomputes the provider HMAC over the documented field
// concatenation (SHA-512, hex) and compares case-insensitively.
func VerifySignature(secret string, p CallbackPayload, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	obj := p.Obj
	concat := strings.Join([]string{
		strconv.FormatInt(obj.AmountCents, 10),
		obj.CreatedAt,
		obj.Currency,
		strconv.FormatBool(obj.ErrorOccured),
		strconv.FormatBool(obj.HasParentTransaction),
		strconv.FormatInt(obj.ID, 10),
		strconv.FormatInt(obj.IntegrationID, 10),
		strconv.FormatBool(obj.Is3DSecure),
		strconv.FormatBool(obj.IsAuth),
		strconv.FormatBool(obj.IsCapture),
		strconv.FormatBool(obj.IsRefunded),
		strconv.FormatBool(obj.IsStandalonePayment),
		strconv.FormatBool(obj.IsVoided),
		strconv.FormatInt(obj.Order.ID, 10),
		strconv.FormatInt(obj.Owner, 10),
		strconv.FormatBool(obj.Pending),
		obj.SourceData.Pan,
		obj.SourceData.SubType,
		obj.SourceData.Type,
		strconv.FormatBool(obj.Success),
	}, "")

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(concat))
	calculated := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(calculated), []byte(strings.ToLower(provided)))
}

// Event flattens the payload into the reconciler's input. The payer
// email lives in shipping data normally, with the payment-key billing
// claims as fallback.
func (p CallbackPayload) Event() usecase.CallbackEvent {
	email := p.Obj.Order.ShippingData.Email
	if email == "" {
		email = p.Obj.PaymentKeyClaims.BillingData.Email
	}
	return usecase.CallbackEvent{
		PaymentID:   strconv.FormatInt(p.Obj.ID, 10),
		Success:     p.Obj.Success,
		AmountCents: p.Obj.AmountCents,
		PayerEmail:  email,
	}
}
