package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Pain0402/CoolStyle/services/api/internal/auth"
)

type RouterConfig struct {
	Orders      *OrderHandler
	Admin       *AdminHandler
	Logger      *zap.Logger
	CORSOrigins []string
	// Verifier enables bearer authentication and admin gating. Nil leaves every route open.
	Verifier *auth.Verifier
	Ready    Pinger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(Recoverer)
	r.Use(Tracing)
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(Authenticate(cfg.Verifier))

	r.NotFound(NotFoundHandler())
	r.MethodNotAllowed(MethodNotAllowedHandler())

	r.Get("/health", HealthHandler)
	r.Get("/ready", ReadyHandler(cfg.Ready))

	requireAdmin := RequireAdmin(cfg.Verifier != nil)

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", cfg.Orders.CreateOrder)
		r.Get("/payment-callback", cfg.Orders.PaymentCallback)
		r.With(requireAdmin).Get("/admin", cfg.Admin.ListOrders)
		r.With(requireAdmin).Put("/admin/{id}/status", cfg.Admin.UpdateStatus)
		r.Get("/{id}", cfg.Orders.GetOrder)
		r.Get("/{id}/pay", cfg.Orders.PaymentURL)
	})
	r.With(requireAdmin).Get("/api/admin/dashboard/revenue", cfg.Admin.Revenue)

	return r
}
