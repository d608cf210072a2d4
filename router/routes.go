package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mstgnz/mediapay/handler"
	"github.com/mstgnz/mediapay/infra/metrics"
	"github.com/mstgnz/mediapay/infra/middle"
	"github.com/mstgnz/mediapay/infra/response"
	v1 "github.com/mstgnz/mediapay/router/v1"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the HTTP surface
type Options struct {
	APIKey         string
	AllowedOrigins []string
	RateLimiter    *middle.RateLimiter
	// NotificationIPs restricts the IPN routes to the providers' published addresses
	NotificationIPs []string
	Health          *handler.HealthHandler
}

// New builds the root router: public provider routes, health and metrics, and the
// API-key protected /v1 API.
func New(opts Options, h v1.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.AccessLogMiddleware())
	r.Use(metrics.Middleware(middle.RoutePattern))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middle.SecurityHeadersMiddleware())
	if opts.RateLimiter != nil {
		r.Use(middle.RateLimitMiddleware(opts.RateLimiter))
	}
	r.Use(middle.RequestValidationMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Health != nil {
		r.Get("/health", opts.Health.CheckHealth)
	}
	r.Handle("/metrics", promhttp.Handler())

	// provider traffic, authenticated by signatures
	r.Get("/callback/{provider}", h.Payment.HandleReturn)
	r.Group(func(r chi.Router) {
		r.Use(middle.IPWhitelistMiddleware(opts.NotificationIPs))
		r.Get("/ipn/{provider}", h.Payment.HandleIPN)
		r.Post("/ipn/{provider}", h.Payment.HandleIPN)
	})
	r.Post("/webhooks/{provider}", h.Payment.HandleWebhook)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middle.AuthMiddleware(opts.APIKey))
		v1.Routes(r, h)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})
	return r
}
