package chat

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-helpdesk/backend/internal/log"
	"github.com/zhouzirui/z-helpdesk/backend/internal/metrics"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/dialogflow"
	conversationService "github.com/zhouzirui/z-helpdesk/backend/internal/service/conversation"
)

const (
	channel      = "chat_ws"
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
)

type inboundMessage struct {
	Type       string         `json:"type"`
	SessionID  string         `json:"sessionId"`
	Text       string         `json:"text"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type replyData struct {
	Text   string `json:"text"`
	State  string `json:"state"`
	Ended  bool   `json:"ended,omitempty"`
	Event  string `json:"event,omitempty"`
	Ticket string `json:"ticketId,omitempty"`
}

// handleWebSocket drives the conversation over a socket, one turn per text
// frame.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), channel)
		logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(log.ContextWithSessionID(r.Context(), sessionID))
	defer cancel()
	logger := log.WithComponentFromContext(ctx, channel)
	logger.Info().Msg("live chat connected")

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	writes := make(chan outgoingMessage, 8)
	go h.writeLoop(ctx, conn, writes)

	send := func(msg outgoingMessage) {
		msg.Timestamp = time.Now().Unix()
		select {
		case writes <- msg:
		case <-ctx.Done():
		}
	}

	send(outgoingMessage{Type: "connected", SessionID: sessionID})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			send(errorMessage("session mismatch"))
			continue
		}

		switch msg.Type {
		case "text", "":
			send(h.turn(ctx, sessionID, msg))
		default:
			send(errorMessage("unsupported message type"))
		}
	}
}

func errorMessage(message string) outgoingMessage {
	return outgoingMessage{Type: "error", Data: map[string]string{"message": message}}
}

// turn runs one conversation step detached from the socket's lifetime.
func (h *Handler) turn(parent context.Context, sessionID string, msg inboundMessage) (out outgoingMessage) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.cfg.TurnTimeout)
	defer cancel()

	fallback := outgoingMessage{Type: "reply", SessionID: sessionID, Data: replyData{Text: h.cfg.Fallback}}
	defer func() {
		if rec := recover(); rec != nil {
			logger := log.WithComponentFromContext(ctx, channel)
			logger.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("turn panicked")
			metrics.IncWebhookRequest(channel, "panic")
			out = fallback
		}
	}()

	res, err := h.engine.Handle(ctx, conversationService.Turn{
		SessionID: sessionID,
		Text:      msg.Text,
		Params:    dialogflow.Params(msg.Parameters),
	})
	if err != nil {
		logger := log.WithComponentFromContext(ctx, channel)
		logger.Error().Err(err).Msg("turn failed")
		metrics.IncWebhookRequest(channel, "error")
		return fallback
	}
	metrics.IncWebhookRequest(channel, "ok")

	data := replyData{Text: res.Text, State: string(res.State), Ended: res.Ended}
	if res.Event != nil {
		data.Event = res.Event.Name
		if id, ok := res.Event.Parameters["ticketId"].(string); ok {
			data.Ticket = id
		}
	}
	return outgoingMessage{Type: "reply", SessionID: sessionID, Data: data}
}

// writeLoop owns every write to conn, including keepalive pings.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, writes <-chan outgoingMessage) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-writes:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
