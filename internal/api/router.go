package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/msgboard-be/internal/api/handlers"
	"github.com/isdelr/msgboard-be/internal/auth"
	"github.com/isdelr/msgboard-be/internal/config"
	"github.com/isdelr/msgboard-be/internal/ratelimit"
	"github.com/isdelr/msgboard-be/internal/services"
	"github.com/isdelr/msgboard-be/internal/stream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a new Chi router. limiter may be nil
// to disable rate limiting (tests do this).
func NewRouter(cfg config.Config, userService services.UserServiceProvider, messageService services.MessageServiceProvider, limiter *ratelimit.Limiter) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	messageHandler := handlers.NewMessageHandler(messageService)
	streamHandler := handlers.NewStreamHandler(messageService, stream.SessionConfig{
		PollInterval: cfg.Stream.PollInterval,
		IdleTimeout:  cfg.Stream.IdleTimeout,
	}, cfg.Stream.BufferFrames)
	healthHandler := handlers.NewHealthHandler()

	// Public endpoints
	r.Post("/user", userHandler.Create)
	r.Get("/user", userHandler.GetMissingRef)
	r.Get("/user/{ref}", userHandler.Get)
	r.Get("/messages", messageHandler.List)
	r.Get("/message/{id}", messageHandler.Get)
	r.Get("/stream", streamHandler.ServeSSE)
	r.Get("/stream/ws", streamHandler.ServeWS)
	r.Get("/healthz", healthHandler.Get)
	r.Handle("/metrics", promhttp.Handler())

	// Mutations require Basic auth
	r.Group(func(r chi.Router) {
		r.Use(auth.BasicAuth(userService))
		r.Post("/message", messageHandler.Create)
		r.Put("/message/{id}", messageHandler.Update)
		r.Delete("/message/{id}", messageHandler.Delete)
	})

	return r
}
