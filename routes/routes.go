package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upb/qna-gateway/app"
	"github.com/upb/qna-gateway/handlers"
	"github.com/upb/qna-gateway/middleware"
	"github.com/upb/qna-gateway/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(chimw.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.HealthChecker(), deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	ask := handlers.NewAskHandler(deps.QnA, deps.Logger)
	provs := handlers.NewProvidersHandler(deps.Router, deps.Logger)

	var reader handlers.AuditReader
	if deps.Audit != nil {
		reader = deps.Audit
	}
	audit := handlers.NewAuditHandler(reader, deps.Logger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Post("/ask", ask.HandleAsk)
		r.Get("/providers", provs.HandleList)
		r.Get("/audit/recent", audit.HandleRecent)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
