package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/database"
	mw "github.com/HubEvolution/EvolutionHub-sub002/internal/middleware"
	inats "github.com/HubEvolution/EvolutionHub-sub002/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth and account handlers
	Register   http.HandlerFunc
	Login      http.HandlerFunc
	Refresh    http.HandlerFunc
	Logout     http.HandlerFunc
	UpdatePlan http.HandlerFunc

	// Enhancement handlers
	Enhance http.HandlerFunc
	Usage   http.HandlerFunc

	// Job handlers
	CreateJob http.HandlerFunc
	GetJob    http.HandlerFunc
	CancelJob http.HandlerFunc

	// Blob delivery
	ServeFile http.HandlerFunc

	// Auth middleware: strict for logout, optional plus owner resolution
	// for the enhancement surface, which serves guests too.
	AuthMiddleware  func(http.Handler) http.Handler
	OptionalAuth    func(http.Handler) http.Handler
	OwnerMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.IsConnected() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Stored blobs (uploads and results)
	r.Get("/files/*", h.ServeFile)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public) — optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Account management (authenticated users only)
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Put("/account/plan", h.UpdatePlan)
		})

		// Enhancement surface: open to guests, so authentication is
		// optional and the owner middleware resolves user-or-guest.
		r.Group(func(r chi.Router) {
			r.Use(h.OptionalAuth)
			r.Use(h.OwnerMiddleware)

			r.Post("/enhance", h.Enhance)
			r.Get("/usage", h.Usage)

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", h.CreateJob)
				r.Get("/{jobID}", h.GetJob)
				r.Post("/{jobID}/cancel", h.CancelJob)
			})
		})
	})

	return r
}
