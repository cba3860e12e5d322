package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	chatHandler "github.com/worklink-ua/backend/internal/handler/chat"
	realtimeHandler "github.com/worklink-ua/backend/internal/handler/realtime"
	middlewarePkg "github.com/worklink-ua/backend/internal/middleware"
	chatService "github.com/worklink-ua/backend/internal/service/chat"
	"github.com/worklink-ua/backend/pkg/utils"
)

// Config carries the handler-level tunables the router needs.
type Config struct {
	TypingWindow   time.Duration
	MutationRPS    float64
	MutationBurst  int
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, cfg Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	limiter := middlewarePkg.NewRateLimiter(cfg.MutationRPS, cfg.MutationBurst)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		// REST routes share one per-IP budget; the websocket session is
		// exempt since it is a single long-lived request.
		api.Group(func(limited chi.Router) {
			limited.Use(limiter.Handler)
			chatHandler.New(chatSvc).RegisterRoutes(limited)
		})

		realtimeHandler.New(chatSvc, cfg.TypingWindow, cfg.AllowedOrigins, logger).RegisterRoutes(api)
	})

	return r
}
