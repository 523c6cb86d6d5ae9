package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agrisense/agrisense/internal/api/alerts"
	"github.com/agrisense/agrisense/internal/api/auth"
	"github.com/agrisense/agrisense/internal/api/middleware"
	"github.com/agrisense/agrisense/internal/api/plots"
	"github.com/agrisense/agrisense/internal/api/readings"
	"github.com/agrisense/agrisense/internal/api/recommendations"
	"github.com/agrisense/agrisense/internal/api/users"
	"github.com/agrisense/agrisense/internal/models"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)
	lockoutTracker := auth.NewLockoutTracker(s.config.LockoutThreshold, s.config.LockoutDuration)

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)

	// Global middleware. StripSlashes keeps the Django-era client URLs
	// (/api/token/, /api/alerts/1/resolve/) working against the
	// slash-less route patterns below.
	r.Use(chimw.StripSlashes)
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Token routes (mostly public)
		r.Route("/token", func(r chi.Router) {
			authHandler := auth.NewHandler(
				s.storage,
				jwtService,
				lockoutTracker,
				s.config.RefreshTokenTTL,
			)

			// Public routes with IP rate limiting
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/", authHandler.ObtainToken)
				r.Post("/refresh", authHandler.Refresh)
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService))
				r.Post("/logout", authHandler.Logout)
			})
		})

		// All remaining /api routes require a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService))
			r.Use(middleware.RateLimitByUser(userLimiter))

			r.Route("/alerts", func(r chi.Router) {
				alertHandler := alerts.NewHandler(s.storage)

				r.Get("/", alertHandler.List)
				r.Get("/summary", alertHandler.Summary)
				r.Get("/{id}", alertHandler.Get)

				// Resolution mutates state, farmers are read-only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireCanWrite)
					r.Post("/{id}/resolve", alertHandler.Resolve)
				})
			})

			r.Route("/ai-agent", func(r chi.Router) {
				recHandler := recommendations.NewHandler(s.storage)
				r.Get("/recommendations/{alertID}", recHandler.ListByAlert)
			})

			r.Route("/sensor-readings", func(r chi.Router) {
				readingHandler := readings.NewHandler(
					s.readings,
					s.processor,
					s.config.QueryTimeout,
					s.config.MaxQueryRange,
				)

				r.Get("/", readingHandler.List)
				r.Get("/latest", readingHandler.Latest)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireCanWrite)
					r.Post("/", readingHandler.Create)
				})
			})

			r.Route("/plots", func(r chi.Router) {
				plotHandler := plots.NewHandler(s.storage)

				r.Get("/", plotHandler.List)
				r.Get("/{id}", plotHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireCanWrite)
					r.Post("/", plotHandler.Create)
					r.Put("/{id}", plotHandler.Update)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleAdmin))
					r.Delete("/{id}", plotHandler.Delete)
				})
			})

			r.Route("/users", func(r chi.Router) {
				userHandler := users.NewHandler(s.storage)

				// Current user endpoints (any authenticated user)
				r.Get("/me", userHandler.GetCurrentUser)
				r.Put("/me/password", userHandler.ChangePassword)

				// Admin-only endpoints
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleAdmin))
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
				})

				// Per-user endpoints (admin or self)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(middleware.RequireAdminOrSelf)
					r.Get("/", userHandler.GetByID)
					r.Put("/", userHandler.Update)

					// Delete is admin-only
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRole(models.RoleAdmin))
						r.Delete("/", userHandler.Delete)
					})
				})
			})
		})
	})

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
