package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"course-access-platform/internal/usecase"
)

type Server struct {
	orderUC     usecase.OrderUseCase
	reconcileUC usecase.ReconcileUseCase
	pauseUC     usecase.PauseUseCase
	standingUC  usecase.StandingUseCase
	auth        *AuthManager
	hmacSecret  string
	log         *zerolog.Logger
}

func NewServer(
	orderUC usecase.OrderUseCase,
	reconcileUC usecase.ReconcileUseCase,
	pauseUC usecase.PauseUseCase,
	standingUC usecase.StandingUseCase,
	auth *AuthManager,
	hmacSecret string,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		orderUC:     orderUC,
		reconcileUC: reconcileUC,
		pauseUC:     pauseUC,
		standingUC:  standingUC,
		auth:        auth,
		hmacSecret:  hmacSecret,
		log:         &srvLog,
	}
}

// Router wires all routes. The callback stays public: it is
// authenticated by the provider signature, not a session.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/payment/callback", s.handleCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/api/payment/checkout", s.handleCheckout)
		r.Get("/api/access/{levelID}", s.handleAccessDetails)
		r.Post("/api/subscription/pause", s.handlePause)
		r.Post("/api/subscription/resume", s.handleResume)
		r.Post("/api/subscription/reactivate", s.handleReactivate)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser, s.requireAdmin)
		r.Post("/api/payment/refund", s.handleRefund)
		r.Get("/api/payment/verify/{paymentID}", s.handleVerifyPayment)
		r.Get("/api/payment/orders/search", s.handleSearchOrders)
		r.Get("/api/payment/orders/report", s.handleOrdersReport)
	})

	return r
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(claimsInto(r.Context(), claims)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())
		if claims == nil || !claims.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
