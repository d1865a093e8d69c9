package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/z-helpdesk/backend/internal/handler/chat"
	"github.com/zhouzirui/z-helpdesk/backend/internal/handler/webhook"
	middlewarePkg "github.com/zhouzirui/z-helpdesk/backend/internal/middleware"
	chatService "github.com/zhouzirui/z-helpdesk/backend/internal/service/chat"
	conversationService "github.com/zhouzirui/z-helpdesk/backend/internal/service/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/pkg/utils"
)

// Options configures the HTTP surface.
type Options struct {
	WebhookTimeout     time.Duration
	RateLimitPerMinute int
	ChatWSEnabled      bool
	LanguageCode       string
	AllowedOrigins     []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(engine *conversationService.Engine, transcripts *chatService.Service, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	fallback := engine.Replies().ServerError()
	webhookHandler := webhook.New(engine, webhook.Config{
		Timeout:      opts.WebhookTimeout,
		LanguageCode: opts.LanguageCode,
		Fallback:     fallback,
	})

	var transcriptReader chat.Transcripts
	if transcripts != nil {
		transcriptReader = transcripts
	}
	chatHandler := chat.New(engine, transcriptReader, chat.Config{
		TurnTimeout:    opts.WebhookTimeout,
		Fallback:       fallback,
		WebSocket:      opts.ChatWSEnabled,
		AllowedOrigins: opts.AllowedOrigins,
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	limit := middlewarePkg.RateLimit(opts.RateLimitPerMinute, time.Minute)

	r.Group(func(g chi.Router) {
		g.Use(limit)
		webhookHandler.RegisterRoutes(g)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(limit)
		webhookHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
	})

	return r
}
