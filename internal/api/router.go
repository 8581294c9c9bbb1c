package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/snigdhasv/email-delivery-service/internal/auth"
	"github.com/snigdhasv/email-delivery-service/internal/config"
	"github.com/snigdhasv/email-delivery-service/internal/queue"
	"github.com/snigdhasv/email-delivery-service/internal/quota"
	"github.com/snigdhasv/email-delivery-service/internal/store"
)

// Per-IP request ceilings, matching the public API's published limits.
const (
	globalRequestsPerMinute = 100
	keygenRequestsPerMinute = 5
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, pgStore *store.PostgresStore, q *queue.Queue, limiter *queue.RateLimiter, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(ipRateLimit(limiter, "ip", globalRequestsPerMinute, time.Minute))

	authenticator := auth.NewAuthenticator(pgStore, logger)
	gate := quota.NewGate(pgStore)

	sendHandler := NewSendHandler(authenticator, gate, pgStore, q, cfg.FromEmail, cfg.FromName, cfg.MaxDeliveryAttempts, logger)
	keyHandler := NewKeyHandler(pgStore, logger)
	recordHandler := NewRecordHandler(pgStore, q, cfg.FromEmail, cfg.FromName, cfg.MaxDeliveryAttempts, logger)
	statsHandler := NewStatsHandler(pgStore, q)

	r.Get("/health", HealthHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/send", sendHandler.Send)
	})

	// Internal routes require a dashboard session token, not an API key.
	r.Route("/internal", func(r chi.Router) {
		r.Use(sessionAuth([]byte(cfg.SessionJWTSecret)))

		r.With(ipRateLimit(limiter, "keygen", keygenRequestsPerMinute, time.Minute)).
			Post("/keys/generate", keyHandler.Generate)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", recordHandler.List)
			r.Get("/{id}", recordHandler.Get)
			r.Post("/{id}/requeue", recordHandler.Requeue)
		})

		r.Get("/stats", statsHandler.Stats)
	})

	return r
}
