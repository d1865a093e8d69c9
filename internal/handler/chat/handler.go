package chat

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
	chatService "github.com/zhouzirui/z-helpdesk/backend/internal/service/chat"
	conversationService "github.com/zhouzirui/z-helpdesk/backend/internal/service/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/pkg/utils"
)

// Engine runs one conversation turn.
type Engine interface {
	Handle(ctx context.Context, turn conversationService.Turn) (conversationService.Result, error)
}

// Transcripts reads stored turns.
type Transcripts interface {
	LoadTranscript(ctx context.Context, sessionID string) ([]conversation.Message, error)
}

// Config tunes the live chat channel.
type Config struct {
	TurnTimeout time.Duration
	Fallback    string
	// WebSocket disables the live chat endpoints when false.
	WebSocket bool
	// AllowedOrigins lists browser origins that may open the socket besides
	// the service's own host.
	AllowedOrigins []string
}

// Handler serves the web widget: anonymous sessions, the live chat socket and
// transcripts for operators.
type Handler struct {
	engine      Engine
	transcripts Transcripts
	cfg         Config
	upgrader    websocket.Upgrader
}

// New creates the chat handler.
func New(engine Engine, transcripts Transcripts, cfg Config) *Handler {
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 9 * time.Second
	}
	return &Handler{
		engine:      engine,
		transcripts: transcripts,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// originChecker accepts requests without an Origin header, same-host pages and
// the configured origins.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed["*"] || allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// RegisterRoutes registers chat related routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	if h.cfg.WebSocket {
		r.Post("/chat/session", h.handleCreateSession)
		r.Get("/chat/ws/{sessionID}", h.handleWebSocket)
	}
	r.Get("/sessions/{sessionID}/transcript", h.handleTranscript)
}

// handleCreateSession hands the widget an anonymous conversation id.
func (h *Handler) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"sessionId": uuid.NewString(),
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionID is required")
		return
	}
	if h.transcripts == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "transcripts unavailable")
		return
	}

	messages, err := h.transcripts.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  messages,
	})
}
