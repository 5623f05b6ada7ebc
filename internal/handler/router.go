package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/talkbridge/internal/middleware"
	"github.com/capitalize-ai/talkbridge/internal/service"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
)

// RouterConfig wires the gateway.
type RouterConfig struct {
	Rooms    *service.RoomService
	Messages *service.MessageService
	// Replayer and Relay are nil when the relay is disabled.
	Replayer Replayer
	Relay    Connectivity

	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Stream            StreamConfig
	Logger            *logger.Logger
}

// NewRouter builds the gateway routes.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger

	healthHandler := NewHealthHandler(cfg.Rooms, cfg.Relay)
	roomHandler := NewRoomHandler(cfg.Rooms, log)
	messageHandler := NewMessageHandler(cfg.Messages, log)
	streamHandler := NewStreamHandler(cfg.Messages, cfg.Replayer, cfg.Stream, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
		write := middleware.RequireScope(middleware.ScopeWrite)

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", roomHandler.List)
			r.With(write).Post("/", roomHandler.Create)

			r.Route("/{token}", func(r chi.Router) {
				r.Get("/", roomHandler.Get)
				r.With(write).Put("/", roomHandler.Rename)
				r.With(write).Delete("/", roomHandler.Delete)
				r.Get("/participants", roomHandler.Participants)

				r.Get("/messages", messageHandler.List)
				r.With(write).Post("/messages", messageHandler.Send)
				r.With(write).Delete("/messages", messageHandler.Clear)
				r.With(write).Post("/share", messageHandler.Share)

				r.Get("/stream", streamHandler.Stream)
				r.Get("/events", streamHandler.Replay)
			})
		})
	})

	return r
}
