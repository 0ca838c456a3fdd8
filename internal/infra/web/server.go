package web

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"trainer-billing/internal/usecase"
)

// Server exposes the webhook endpoint and the operator API.
type Server struct {
	chargeUC usecase.ChargeUseCase
	webhkUC  usecase.WebhookUseCase
	credUC   usecase.CredentialUseCase
	subUC    usecase.SubscriptionUseCase
	auth     *AuthManager
	apiKey   string
	log      *zerolog.Logger
}

func NewServer(
	chargeUC usecase.ChargeUseCase,
	webhkUC usecase.WebhookUseCase,
	credUC usecase.CredentialUseCase,
	subUC usecase.SubscriptionUseCase,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	compLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		chargeUC: chargeUC,
		webhkUC:  webhkUC,
		credUC:   credUC,
		subUC:    subUC,
		auth:     auth,
		apiKey:   apiKey,
		log:      &compLog,
	}
}

// Router builds the full route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(30*time.Second))

	// Unauthenticated surface. The gateway does not authenticate its
	// callbacks; the handler answers fast and never leaks internals.
	r.Post("/webhooks/payment", s.handleWebhook)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Session bootstrap: exchange the operator API key for a JWT cookie.
	r.Post("/api/v1/session", s.handleLogin)
	r.Delete("/api/v1/session", s.handleLogout)

	// Operator API behind the session guard.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionGuard)

		r.Get("/payment-config", s.handleConfigStatus)
		r.Put("/payment-config", s.handleConfigure)
		r.Delete("/payment-config", s.handleDeactivateConfig)

		r.Get("/webhook-events/failed", s.handleFailedEvents)

		r.Post("/charges", s.handleChargeCreate)
		r.Get("/charges", s.handleChargeList)
		r.Get("/charges/{id}", s.handleChargeGet)
		r.Post("/charges/{id}/link", s.handleChargeLink)
		r.Post("/charges/{id}/cancel", s.handleChargeCancel)
		r.Delete("/charges/{id}", s.handleChargeDelete)

		r.Get("/students/{id}/charges", s.handleStudentCharges)
		r.Get("/subscriptions/{id}", s.handleSubscriptionGet)
	})

	return r
}

// sessionGuard rejects requests without a valid operator session.
func (s *Server) sessionGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" {
		s.log.Error().Msg("operator API key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	key := r.Header.Get("X-Api-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
