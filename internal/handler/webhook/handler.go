// Package webhook serves the conversational platform's fulfillment endpoint.
package webhook

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-helpdesk/backend/internal/log"
	"github.com/zhouzirui/z-helpdesk/backend/internal/metrics"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/dialogflow"
	conversationService "github.com/zhouzirui/z-helpdesk/backend/internal/service/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/pkg/utils"
)

const (
	channel = "webhook"

	// ContextName is the output context carrying the conversation state.
	ContextName     = "helpdesk"
	contextLifespan = 5

	maxBodyBytes = 1 << 20
)

// Engine runs one conversation turn.
type Engine interface {
	Handle(ctx context.Context, turn conversationService.Turn) (conversationService.Result, error)
}

// Config tunes the handler.
type Config struct {
	// Timeout bounds a turn independently of the caller's connection.
	Timeout      time.Duration
	LanguageCode string
	// Fallback is sent when a turn fails unexpectedly.
	Fallback string
}

// Handler adapts webhook requests onto the conversation engine.
type Handler struct {
	engine Engine
	cfg    Config
}

// New creates the webhook handler.
func New(engine Engine, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 9 * time.Second
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "pt-BR"
	}
	return &Handler{engine: engine, cfg: cfg}
}

// RegisterRoutes mounts the fulfillment endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.handleWebhook)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req dialogflow.WebhookRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		metrics.IncWebhookRequest(channel, "bad_request")
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := req.Session
	if sessionID == "" {
		sessionID = FallbackSessionID(r)
	}

	turn := conversationService.Turn{
		SessionID: sessionID,
		Text:      req.QueryResult.QueryText,
		Params:    dialogflow.Params(req.QueryResult.Parameters),
	}

	res, outcome := h.run(r.Context(), turn)
	metrics.IncWebhookRequest(channel, outcome)

	utils.RespondJSON(w, http.StatusOK, h.response(req.Session, res))
}

// run executes the turn with its own deadline so a dropped connection cannot
// abort a half-applied transition. Panics and backend errors become the
// fallback reply.
func (h *Handler) run(parent context.Context, turn conversationService.Turn) (res conversationService.Result, outcome string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.cfg.Timeout)
	defer cancel()
	ctx = log.ContextWithSessionID(ctx, turn.SessionID)
	logger := log.WithComponentFromContext(ctx, channel)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("turn panicked")
			res = conversationService.Result{Text: h.cfg.Fallback}
			outcome = "panic"
		}
	}()

	res, err := h.engine.Handle(ctx, turn)
	if err != nil {
		logger.Error().Err(err).Msg("turn failed")
		return conversationService.Result{Text: h.cfg.Fallback}, "error"
	}
	return res, "ok"
}

func (h *Handler) response(session string, res conversationService.Result) dialogflow.WebhookResponse {
	out := dialogflow.WebhookResponse{FulfillmentText: res.Text}

	if session != "" && res.State != "" {
		lifespan := contextLifespan
		if res.Ended {
			lifespan = 0
		}
		params := map[string]any{"state": string(res.State)}
		if res.EmployeeID != "" {
			params["matricula"] = res.EmployeeID
		}
		out.OutputContexts = []dialogflow.Context{{
			Name:          dialogflow.ContextName(session, ContextName),
			LifespanCount: lifespan,
			Parameters:    params,
		}}
	}

	if res.Event != nil {
		out.FollowupEventInput = &dialogflow.EventInput{
			Name:         res.Event.Name,
			LanguageCode: h.cfg.LanguageCode,
			Parameters:   res.Event.Parameters,
		}
	}
	return out
}

// FallbackSessionID keys an anonymous caller by client IP.
func FallbackSessionID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "anon"
	}
	return "sess:" + host
}
