package router

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/handler"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/metrics"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/middleware"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/response"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
)

type Dependencies struct {
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Parcels *handler.ParcelHandler
	Health  *handler.HealthHandler

	Authenticator *middleware.AuthMiddleware
	Metrics       *metrics.Metrics
	Logger        *zap.Logger

	// RateLimitStore may be nil, which disables rate limiting.
	RateLimitStore middleware.RateLimitStore
	RateLimit      middleware.RateLimitConfig

	// TrustedProxies may forward client addresses in X-Forwarded-For.
	TrustedProxies []netip.Prefix

	AllowedOrigins []string
	RequestTimeout time.Duration
}

func New(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(d.TrustedProxies))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(middleware.Instrument(d.Metrics))
	}
	r.Use(middleware.CORSMiddleware(d.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health endpoints (OpenShift compatible)
	r.Get("/health", d.Health.Health)
	r.Get("/health/ready", d.Health.Ready)
	r.Get("/health/live", d.Health.Live)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(chimw.Timeout(d.RequestTimeout))
		}

		r.Route("/auth", func(r chi.Router) {
			if d.RateLimitStore != nil {
				r.Use(middleware.RateLimiter(d.RateLimitStore, d.RateLimit, d.Logger))
			}
			r.Post("/register", d.Auth.Register)
			r.Post("/login", d.Auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(d.Authenticator.Authenticate)

			r.Route("/users", func(r chi.Router) {
				r.With(middleware.RequireRole(domain.RoleAdmin)).Post("/", d.Users.Create)
				r.With(middleware.RequireRole(domain.RoleAdmin)).Get("/", d.Users.List)
				r.Get("/me", d.Users.Me)
				r.Put("/{id}", d.Users.Update)
				r.Put("/{id}/change-password", d.Users.ChangePassword)
			})

			r.Route("/parcels", func(r chi.Router) {
				r.With(middleware.RequireStaff).Post("/", d.Parcels.Create)
				r.With(middleware.RequireStaff).Post("/return", d.Parcels.CreateReturn)
				r.Get("/", d.Parcels.List)
				r.Get("/me", d.Parcels.Mine)
				r.Get("/track/{trackingNumber}", d.Parcels.Track)
				r.Get("/{id}", d.Parcels.Get)
				r.With(middleware.RequireStaff).Put("/{id}", d.Parcels.Update)
				r.With(middleware.RequireStaff).Put("/{id}/status", d.Parcels.UpdateStatus)
			})
		})
	})

	return r
}
