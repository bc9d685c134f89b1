package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"odo-backend/internal/handlers"
	"odo-backend/internal/metrics"
	"odo-backend/internal/middleware"
	"odo-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	permissions middleware.PermissionChecker,
	authHandler *handlers.AuthHandler,
	listeningHandler *handlers.ListeningHandler,
	statsHandler *handlers.StatsHandler,
	groupHandler *handlers.GroupHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes ────
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authLimiter.Middleware)
				r.Post("/login", authHandler.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/verify", authHandler.Verify)
				r.Post("/session", authHandler.CreateSession)
				r.Delete("/session", authHandler.EndSession)
			})
		})

		// ──── Listening Routes ────
		r.Route("/listening", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/event", listeningHandler.IngestEvent)
			r.Get("/recent", listeningHandler.Recent)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(permissions, "history.view"))
				r.Get("/history", listeningHandler.History)
			})
		})

		// ──── Stats Routes ────
		r.Route("/stats", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/summary", statsHandler.Summary)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(permissions, "stats.view"))
				r.Get("/daily", statsHandler.Daily)
				r.Get("/hourly", statsHandler.Hourly)
			})
		})

		// ──── Group Routes ────
		r.Route("/groups", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", groupHandler.List)
			r.Get("/{id}", groupHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(permissions, "group.report"))
				r.Get("/{id}/stats", statsHandler.GroupDaily)
			})
		})
	})

	// WebSocket (token auth via query param)
	r.Get("/ws", wsHub.HandleWebSocket)

	return r
}
