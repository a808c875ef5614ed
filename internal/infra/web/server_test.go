package web

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"course-access-platform/internal/domain"
	"course-access-platform/internal/domain/model"
	"course-access-platform/internal/domain/ports/adapter"
	"course-access-platform/internal/domain/ports/repository"
	"course-access-platform/internal/usecase"
)

// ---- Stub use cases ----

type stubOrderUC struct {
	CheckoutFunc      func(ctx context.Context, userID, levelID string, amount int64) (string, error)
	AccessDetailsFunc func(ctx context.Context, userID, levelID string) (*model.AccessInfo, error)
	RefundFunc        func(ctx context.Context, paymentID string) (*model.Order, error)
}

var _ usecase.OrderUseCase = (*stubOrderUC)(nil)

func (s *stubOrderUC) Checkout(ctx context.Context, userID, levelID string, amount int64) (string, error) {
	if s.CheckoutFunc != nil {
		return s.CheckoutFunc(ctx, userID, levelID, amount)
	}
	return "https://checkout.example/session", nil
}

func (s *stubOrderUC) TransitionToCompleted(ctx context.Context, tx repository.Tx, orderID, paymentID string) (*model.Order, error) {
	return nil, errors.New("not wired")
}

func (s *stubOrderUC) TransitionToFailed(ctx context.Context, tx repository.Tx, orderID, paymentID string) (*model.Order, error) {
	return nil, errors.New("not wired")
}

func (s *stubOrderUC) Refund(ctx context.Context, paymentID string) (*model.Order, error) {
	if s.RefundFunc != nil {
		return s.RefundFunc(ctx, paymentID)
	}
	return nil, domain.ErrNotFound
}

func (s *stubOrderUC) FindActiveAccess(ctx context.Context, userID, levelID string) (*model.Order, error) {
	return nil, domain.ErrNotFound
}

func (s *stubOrderUC) AccessDetails(ctx context.Context, userID, levelID string) (*model.AccessInfo, error) {
	if s.AccessDetailsFunc != nil {
		return s.AccessDetailsFunc(ctx, userID, levelID)
	}
	return &model.AccessInfo{LevelID: levelID}, nil
}

func (s *stubOrderUC) ExpireOverdue(ctx context.Context) (int, error)      { return 0, nil }
func (s *stubOrderUC) DeleteStalePending(ctx context.Context) (int, error) { return 0, nil }

func (s *stubOrderUC) SearchOrders(ctx context.Context, f repository.OrderFilter) ([]*model.Order, int, error) {
	return nil, 0, nil
}

func (s *stubOrderUC) OrdersReport(ctx context.Context, period string) ([]*model.Order, error) {
	return nil, nil
}

func (s *stubOrderUC) VerifyPaymentStatus(ctx context.Context, paymentID string) (adapter.TransactionStatus, *model.Order, error) {
	return adapter.TransactionStatus{PaymentID: paymentID}, nil, nil
}

type stubReconcileUC struct {
	HandleFunc func(ctx context.Context, ev usecase.CallbackEvent) error
}

var _ usecase.ReconcileUseCase = (*stubReconcileUC)(nil)

func (s *stubReconcileUC) HandleCallback(ctx context.Context, ev usecase.CallbackEvent) error {
	if s.HandleFunc != nil {
		return s.HandleFunc(ctx, ev)
	}
	return nil
}

func (s *stubReconcileUC) HandleCallbackWithRetry(ctx context.Context, ev usecase.CallbackEvent) error {
	return s.HandleCallback(ctx, ev)
}

type stubPauseUC struct{}

var _ usecase.PauseUseCase = (*stubPauseUC)(nil)

func (s *stubPauseUC) VoluntaryPause(ctx context.Context, userID string, durationDays int) (*model.User, error) {
	u, _ := model.NewUser(userID, userID+"@example.com", "Test", time.Now())
	_ = u.BeginVoluntaryPause(durationDays, time.Now())
	return u, nil
}

func (s *stubPauseUC) VoluntaryResume(ctx context.Context, userID string) (int, error) {
	return 0, domain.ErrNotPaused
}

func (s *stubPauseUC) ResumeDue(ctx context.Context) (int, error) { return 0, nil }

type stubStandingUC struct{}

var _ usecase.StandingUseCase = (*stubStandingUC)(nil)

func (s *stubStandingUC) SweepInactive(ctx context.Context) (usecase.SweepStats, error) {
	return usecase.SweepStats{}, nil
}

func (s *stubStandingUC) Reactivate(ctx context.Context, userID string, c usecase.Commitment) (*model.User, error) {
	return nil, domain.ErrCommitmentRequired
}

// ---- Harness ----

const testHMACSecret = "webhook-secret"

func newTestServer(orderUC *stubOrderUC, reconcileUC *stubReconcileUC) (*Server, *AuthManager) {
	logger := zerolog.New(io.Discard)
	auth := NewAuthManager("session-secret", false, "", time.Hour)
	if orderUC == nil {
		orderUC = &stubOrderUC{}
	}
	if reconcileUC == nil {
		reconcileUC = &stubReconcileUC{}
	}
	srv := NewServer(orderUC, reconcileUC, &stubPauseUC{}, &stubStandingUC{}, auth, testHMACSecret, &logger)
	return srv, auth
}

func mintToken(t *testing.T, auth *AuthManager, userID, role string) string {
	t.Helper()
	tok, err := auth.Mint(httptest.NewRecorder(), userID, role)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ---- Tests ----

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrPauseDurationInvalid, http.StatusBadRequest},
		{domain.ErrPauseAttemptsExceeded, http.StatusBadRequest},
		{domain.ErrPauseBudgetExceeded, http.StatusBadRequest},
		{domain.ErrCommitmentRequired, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNoPendingOrder, http.StatusNotFound},
		{domain.ErrUserNotResolved, http.StatusNotFound},
		{domain.ErrActiveOrderExists, http.StatusConflict},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{domain.ErrPaymentIDConflict, http.StatusConflict},
		{domain.ErrOrderStateConflict, http.StatusConflict},
		{domain.ErrOrderNotRefundable, http.StatusConflict},
		{domain.ErrNotPaused, http.StatusConflict},
		{domain.ErrGatewayTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := httpStatus(tc.err); got != tc.want {
			t.Errorf("httpStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, auth := newTestServer(nil, nil)
	router := srv.Router()

	t.Run("rejects anonymous requests", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/payment/checkout", "", checkoutRequest{LevelID: "level-1", Amount: 500})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/payment/checkout", "not-a-jwt", checkoutRequest{LevelID: "level-1", Amount: 500})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("user token cannot reach admin routes", func(t *testing.T) {
		tok := mintToken(t, auth, "user-1", "user")
		rec := doJSON(t, router, http.MethodPost, "/api/payment/refund", tok, refundRequest{PaymentID: "pm-1"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("admin token reaches admin routes", func(t *testing.T) {
		tok := mintToken(t, auth, "admin-1", "admin")
		rec := doJSON(t, router, http.MethodGet, "/api/payment/orders/search", tok, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("cookie session works too", func(t *testing.T) {
		tok := mintToken(t, auth, "user-1", "user")
		req := httptest.NewRequest(http.MethodGet, "/api/access/level-1", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: tok})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestHandleCheckout(t *testing.T) {
	t.Run("admins cannot purchase", func(t *testing.T) {
		srv, auth := newTestServer(nil, nil)
		tok := mintToken(t, auth, "admin-1", "admin")
		rec := doJSON(t, srv.Router(), http.MethodPost, "/api/payment/checkout", tok, checkoutRequest{LevelID: "level-1", Amount: 500})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns the checkout url", func(t *testing.T) {
		orderUC := &stubOrderUC{CheckoutFunc: func(ctx context.Context, userID, levelID string, amount int64) (string, error) {
			if userID != "user-1" || levelID != "level-1" || amount != 500 {
				t.Errorf("unexpected args %s %s %d", userID, levelID, amount)
			}
			return "https://pay.example/x", nil
		}}
		srv, auth := newTestServer(orderUC, nil)
		tok := mintToken(t, auth, "user-1", "user")

		rec := doJSON(t, srv.Router(), http.MethodPost, "/api/payment/checkout", tok, checkoutRequest{LevelID: "level-1", Amount: 500})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["checkout_url"] != "https://pay.example/x" {
			t.Errorf("unexpected body %v", resp)
		}
	})

	t.Run("duplicate purchase maps to 409", func(t *testing.T) {
		orderUC := &stubOrderUC{CheckoutFunc: func(ctx context.Context, userID, levelID string, amount int64) (string, error) {
			return "", domain.ErrActiveOrderExists
		}}
		srv, auth := newTestServer(orderUC, nil)
		tok := mintToken(t, auth, "user-1", "user")

		rec := doJSON(t, srv.Router(), http.MethodPost, "/api/payment/checkout", tok, checkoutRequest{LevelID: "level-1", Amount: 500})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func callbackBody(t *testing.T, amountCents int64, success bool) ([]byte, string) {
	t.Helper()
	body := map[string]interface{}{
		"obj": map[string]interface{}{
			"id":           123,
			"amount_cents": amountCents,
			"created_at":   "2026-03-01T12:00:00",
			"currency":     "SAR",
			"success":      success,
			"order": map[string]interface{}{
				"id":            456,
				"shipping_data": map[string]string{"email": "payer@example.com"},
			},
			"source_data": map[string]string{"pan": "2345", "sub_type": "MasterCard", "type": "card"},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	concat := strconv.FormatInt(amountCents, 10) +
		"2026-03-01T12:00:00" + "SAR" +
		"false" + "false" + "123" + "0" +
		"false" + "false" + "false" + "false" + "false" + "false" +
		"456" + "0" + "false" +
		"2345" + "MasterCard" + "card" +
		strconv.FormatBool(success)
	mac := hmac.New(sha512.New, []byte(testHMACSecret))
	mac.Write([]byte(concat))
	return raw, hex.EncodeToString(mac.Sum(nil))
}

func TestHandleCallback(t *testing.T) {
	t.Run("rejects a bad signature", func(t *testing.T) {
		srv, _ := newTestServer(nil, nil)
		raw, _ := callbackBody(t, 50000, true)

		req := httptest.NewRequest(http.MethodPost, "/api/payment/callback?hmac=deadbeef", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("processes a signed callback", func(t *testing.T) {
		var got usecase.CallbackEvent
		reconcileUC := &stubReconcileUC{HandleFunc: func(ctx context.Context, ev usecase.CallbackEvent) error {
			got = ev
			return nil
		}}
		srv, _ := newTestServer(nil, reconcileUC)
		raw, sig := callbackBody(t, 50000, true)

		req := httptest.NewRequest(http.MethodPost, "/api/payment/callback?hmac="+sig, bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.PaymentID != "123" || !got.Success || got.AmountCents != 50000 || got.PayerEmail != "payer@example.com" {
			t.Errorf("unexpected event %+v", got)
		}
	})

	t.Run("maps reconciliation conflicts to 409", func(t *testing.T) {
		reconcileUC := &stubReconcileUC{HandleFunc: func(ctx context.Context, ev usecase.CallbackEvent) error {
			return domain.ErrPaymentIDConflict
		}}
		srv, _ := newTestServer(nil, reconcileUC)
		raw, sig := callbackBody(t, 50000, true)

		req := httptest.NewRequest(http.MethodPost, "/api/payment/callback?hmac="+sig, bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestHandleReactivateValidation(t *testing.T) {
	srv, auth := newTestServer(nil, nil)
	tok := mintToken(t, auth, "user-1", "user")

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/subscription/reactivate", tok, usecase.Commitment{WillCare: true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
