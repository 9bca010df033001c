package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/debugferro/identity-be/internal/api/handlers"
	"github.com/debugferro/identity-be/internal/auth"
	"github.com/debugferro/identity-be/internal/services"
	"github.com/debugferro/identity-be/internal/websocket"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(
	hub *websocket.Hub,
	authManager *auth.Manager,
	userService services.UserServiceProvider,
	eventService services.EventServiceProvider,
	statsProvider handlers.SystemStatsProvider,
	allowedOrigin string,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, authManager)
	eventHandler := handlers.NewEventHandler(eventService)
	statsHandler := handlers.NewStatsHandler(statsProvider)
	wsHandler := handlers.NewWebSocketHandler(hub)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket connection endpoint
		r.Get("/ws", wsHandler.Serve)

		// Public auth endpoints, rate limited per IP to slow down abuse.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, time.Minute))
			r.Post("/auth/register", userHandler.Register)
			r.Post("/auth/login", userHandler.Login)
		})

		// Display name availability probe (public, used by signup forms).
		r.Get("/display-names/check", userHandler.CheckDisplayName)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(authManager.Middleware())

			r.Get("/me", userHandler.GetMe)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.List)
				r.Get("/by-name/{name}", userHandler.GetByDisplayName)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", userHandler.Get)
					r.Put("/", userHandler.Update)
					r.Delete("/", userHandler.Delete)
					r.Post("/password", userHandler.ChangePassword)
				})
			})

			r.Get("/events", eventHandler.GetRecent)
			r.Get("/system/stats", statsHandler.Get)
		})
	})

	return r
}
