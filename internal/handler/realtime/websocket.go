// Package realtime exposes the websocket endpoint that runs one
// synchronizer session per connection: ordered snapshots, typing sets
// and connection status flow out; send/edit/delete/typing commands flow
// in.
package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/worklink-ua/backend/internal/metrics"
	"github.com/worklink-ua/backend/internal/model/chat"
	chatservice "github.com/worklink-ua/backend/internal/service/chat"
	"github.com/worklink-ua/backend/internal/syncer"
)

const (
	writeTimeout  = 10 * time.Second
	outboundDepth = 64
)

// Handler upgrades conversation websocket sessions.
type Handler struct {
	chatSvc      *chatservice.Service
	typingWindow time.Duration
	logger       zerolog.Logger
	upgrader     websocket.Upgrader
}

// New creates the realtime handler. An empty allowedOrigins list accepts
// any origin; non-browser clients without an Origin header always pass.
func New(chatSvc *chatservice.Service, typingWindow time.Duration, allowedOrigins []string, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		typingWindow: typingWindow,
		logger:       logger.With().Str("component", "realtime_handler").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes wires the websocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations/{conversationID}/ws", h.handleSession)
}

type inboundFrame struct {
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Active         bool   `json:"active,omitempty"`
}

type outboundFrame struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages,omitempty"`
	Users    []string       `json:"users,omitempty"`
	Status   string         `json:"status,omitempty"`
	Message  *chat.Message  `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}

	if _, err := h.chatSvc.Join(r.Context(), conversationID, userID); err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().
		Str("conversation_id", conversationID).
		Str("user_id", userID).
		Logger()

	// Single writer goroutine; session callbacks and the read pump only
	// ever enqueue. After a write error it keeps draining so enqueuers
	// never block on a dead connection.
	out := make(chan outboundFrame, outboundDepth)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		var writeErr error
		for frame := range out {
			if writeErr != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if writeErr = conn.WriteJSON(frame); writeErr != nil {
				logger.Debug().Err(writeErr).Msg("websocket write failed")
				conn.Close()
			}
		}
	}()
	enqueue := func(frame outboundFrame) {
		out <- frame
	}

	session, err := syncer.Open(r.Context(), syncer.Options{
		ConversationID: conversationID,
		UserID:         userID,
		Store:          h.chatSvc,
		Feed:           h.chatSvc,
		Broadcast:      h.chatSvc,
		TypingWindow:   h.typingWindow,
		Logger:         logger,
		OnSnapshot: func(messages []chat.Message) {
			enqueue(outboundFrame{Type: "snapshot", Messages: messages})
		},
		OnTyping: func(users []string) {
			enqueue(outboundFrame{Type: "typing", Users: users})
		},
		OnStatus: func(status syncer.Status) {
			enqueue(outboundFrame{Type: "status", Status: string(status)})
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open conversation session")
		enqueue(outboundFrame{Type: "error", Error: "failed to open conversation"})
		close(out)
		<-writerDone
		return
	}

	metrics.RealtimeSessions.Inc()
	logger.Info().Msg("realtime session opened")

	h.readPump(r.Context(), conn, session, enqueue, logger)

	session.Close()
	close(out)
	<-writerDone
	metrics.RealtimeSessions.Dec()
	logger.Info().Msg("realtime session closed")
}

// readPump dispatches inbound frames until the connection drops. Failed
// commands are reported back as error frames; the session itself stays
// usable, matching the no-operation-is-fatal contract.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, session *syncer.Syncer, enqueue func(outboundFrame), logger zerolog.Logger) {
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		switch frame.Type {
		case "send":
			msg, err := session.Send(ctx, frame.Text, frame.TargetLanguage)
			if err != nil {
				enqueue(outboundFrame{Type: "error", Error: commandError(err)})
				continue
			}
			enqueue(outboundFrame{Type: "sent", Message: &msg})
		case "edit":
			if _, err := session.Edit(ctx, frame.MessageID, frame.Text); err != nil {
				enqueue(outboundFrame{Type: "error", Error: commandError(err)})
			}
		case "delete":
			if err := session.Remove(ctx, frame.MessageID); err != nil {
				enqueue(outboundFrame{Type: "error", Error: commandError(err)})
			}
		case "typing":
			session.SetTyping(frame.Active)
		default:
			enqueue(outboundFrame{Type: "error", Error: "unknown frame type"})
		}
	}
}

// commandError maps synchronizer error kinds onto short wire strings.
func commandError(err error) string {
	switch {
	case errors.Is(err, syncer.ErrValidation):
		return "invalid message"
	case errors.Is(err, syncer.ErrSend):
		return "send failed"
	case errors.Is(err, syncer.ErrEdit):
		return "edit failed"
	case errors.Is(err, syncer.ErrDelete):
		return "delete failed"
	case errors.Is(err, syncer.ErrClosed):
		return "session closed"
	default:
		return "command failed"
	}
}
