package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"course-access-platform/internal/domain"
	"course-access-platform/internal/domain/model"
	"course-access-platform/internal/domain/ports/repository"
	"course-access-platform/internal/infra/metrics"
	"course-access-platform/internal/infra/payment"
	"course-access-platform/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// httpStatus maps domain sentinel errors onto the API surface.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrPauseDurationInvalid),
		errors.Is(err, domain.ErrPauseAttemptsExceeded),
		errors.Is(err, domain.ErrPauseBudgetExceeded),
		errors.Is(err, domain.ErrCommitmentRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNoPendingOrder),
		errors.Is(err, domain.ErrUserNotResolved):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrActiveOrderExists),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrPaymentIDConflict),
		errors.Is(err, domain.ErrOrderStateConflict),
		errors.Is(err, domain.ErrOrderNotRefundable),
		errors.Is(err, domain.ErrNotPaused):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// ===== Payments =====

type checkoutRequest struct {
	LevelID string `json:"level_id"`
	Amount  int64  `json:"amount"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	if claims.IsAdmin() {
		writeError(w, http.StatusBadRequest, "admin accounts cannot purchase courses")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url, err := s.orderUC.Checkout(r.Context(), claims.UserID(), req.LevelID, req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

// handleCallback is the provider webhook. Signature failures are 401;
// reconciliation outcomes that the provider should not re-deliver for
// (replays, unresolvable users after retries) still end in an error
// status so the provider retries only what can change.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var payload payment.CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback body")
		return
	}
	if !payment.VerifySignature(s.hmacSecret, payload, r.URL.Query().Get("hmac")) {
		metrics.IncWebhook("bad_signature")
		s.log.Error().Msg("callback signature verification failed")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev := payload.Event()
	if err := s.reconcileUC.HandleCallbackWithRetry(r.Context(), ev); err != nil {
		s.log.Error().Err(err).Str("payment_id", ev.PaymentID).Msg("callback reconciliation failed")
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"processed": true})
}

type refundRequest struct {
	PaymentID string `json:"payment_id"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := s.orderUC.Refund(r.Context(), req.PaymentID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	st, o, err := s.orderUC.VerifyPaymentStatus(r.Context(), paymentID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gateway": st,
		"order":   o,
	})
}

func (s *Server) handleSearchOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	f := repository.OrderFilter{
		UserID:        q.Get("user_id"),
		PaymentID:     q.Get("payment_id"),
		PaymentStatus: model.PaymentStatus(q.Get("status")),
		Offset:        offset,
		Limit:         limit,
	}
	orders, total, err := s.orderUC.SearchOrders(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": total,
		"data":  orders,
	})
}

func (s *Server) handleOrdersReport(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orderUC.OrdersReport(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(orders),
		"data":  orders,
	})
}

// ===== Access =====

func (s *Server) handleAccessDetails(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	info, err := s.orderUC.AccessDetails(r.Context(), claims.UserID(), chi.URLParam(r, "levelID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ===== Subscription standing =====

type pauseRequest struct {
	DurationDays int `json:"duration_days"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.pauseUC.VoluntaryPause(r.Context(), claims.UserID(), req.DurationDays)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paused_until":     u.PauseScheduledEndDate,
		"attempts_used":    u.VoluntaryPauseAttempts,
		"budget_remaining": u.PauseBudgetRemaining(),
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	days, err := s.pauseUC.VoluntaryResume(r.Context(), claims.UserID())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"days_charged": days})
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	var c usecase.Commitment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.standingUC.Reactivate(r.Context(), claims.UserID(), c)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            u.Status,
		"total_paused_days": u.TotalPausedDays,
	})
}
