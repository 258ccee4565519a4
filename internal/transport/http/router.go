// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"labgate/internal/platform/middleware"
)

// Handler bundles the domain services the HTTP layer fronts.
type Handler struct {
	login  LoginService
	cart   CartService
	prov   ProviderService
	logger *slog.Logger
}

// NewHandler constructs the HTTP handler set.
func NewHandler(login LoginService, cart CartService, prov ProviderService, logger *slog.Logger) *Handler {
	return &Handler{
		login:  login,
		cart:   cart,
		prov:   prov,
		logger: logger,
	}
}

// NewRouter wires all endpoints with the middleware stack. Authenticated
// routes sit behind the gateway-token middleware; the client IP resolved up
// front is what sessions are bound to.
func NewRouter(h *Handler, logger *slog.Logger, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/sessions", h.handleSessions)
			r.Get("/products", h.handleProducts)
			r.Get("/pincode/{pincode}", h.handlePincode)
			r.Post("/slots", h.handleSlots)
			r.Post("/cart/validate", h.handleCartValidate)
			r.Post("/cart/duplicates", h.handleCartDuplicates)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
