package app

import (
	"encoding/json"
	"net/http"
	"time"

	"quizbot/internal/app/observability"
	"quizbot/internal/bot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the HTTP surface: health, metrics and the Telegram
// webhook endpoint. In long-polling mode the webhook route simply never
// receives traffic.
func NewRouter(cfg Config, handler *bot.Handler, collector *observability.Collector) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(collector.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Get("/metrics", collector.MetricsHandler)

	limiter := NewIPRateLimiter(cfg.WebhookRateLimitPerMin, time.Minute)
	r.Group(func(hook chi.Router) {
		hook.Use(WebhookSecretMiddleware(cfg.WebhookSecret))
		hook.Use(RateLimitMiddleware(limiter))
		hook.Post("/telegram/webhook", func(w http.ResponseWriter, r *http.Request) {
			var upd bot.Update
			if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
				http.Error(w, "bad update", http.StatusBadRequest)
				return
			}
			collector.RecordUpdate(upd.Kind())
			handler.HandleUpdate(r.Context(), upd)
			w.WriteHeader(http.StatusOK)
		})
	})

	return r
}
