package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/worklink-ua/backend/internal/model/chat"
	chatService "github.com/worklink-ua/backend/internal/service/chat"
	"github.com/worklink-ua/backend/internal/store"
	"github.com/worklink-ua/backend/pkg/utils"
)

// Handler exposes the conversation and message REST surface.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the chat handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes wires the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", h.handleEnsureConversation)
	r.Post("/conversations/{conversationID}/participants", h.handleJoin)
	r.Get("/conversations/{conversationID}/participants", h.handleParticipants)
	r.Get("/conversations/{conversationID}/messages", h.handleListMessages)
	r.Post("/conversations/{conversationID}/messages", h.handleSendMessage)
	r.Patch("/conversations/{conversationID}/messages/{messageID}", h.handleEditMessage)
	r.Delete("/conversations/{conversationID}/messages/{messageID}", h.handleDeleteMessage)
}

// handleEnsureConversation creates a conversation, or returns the
// existing one when the id is already taken. The web client bootstraps
// its shared conversation through this and must be able to race.
func (h *Handler) handleEnsureConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	conv, err := h.chatSvc.EnsureConversation(r.Context(), payload.ID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	participant, err := h.chatSvc.Join(r.Context(), conversationID, payload.UserID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to join conversation")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, participant)
}

func (h *Handler) handleParticipants(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	participants, err := h.chatSvc.Participants(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}
	utils.RespondJSON(w, http.StatusOK, participants)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	messages, err := h.chatSvc.ListMessages(r.Context(), conversationID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	var payload struct {
		SenderID       string `json:"sender_id"`
		OriginalText   string `json:"original_text"`
		TargetLanguage string `json:"target_language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft := chat.MessageDraft{
		ConversationID: conversationID,
		SenderID:       payload.SenderID,
		OriginalText:   payload.OriginalText,
		TargetLanguage: payload.TargetLanguage,
	}
	if err := draft.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.chatSvc.InsertMessage(r.Context(), draft)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messageID := chi.URLParam(r, "messageID")
	var payload struct {
		OriginalText string `json:"original_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.OriginalText == "" {
		utils.RespondError(w, http.StatusBadRequest, "original_text is required")
		return
	}

	msg, err := h.chatSvc.UpdateMessageText(r.Context(), conversationID, messageID, payload.OriginalText)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyText) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, chatService.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "message not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to update message")
		return
	}
	utils.RespondJSON(w, http.StatusOK, msg)
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messageID := chi.URLParam(r, "messageID")

	if err := h.chatSvc.DeleteMessage(r.Context(), conversationID, messageID); err != nil {
		if errors.Is(err, chatService.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "message not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
