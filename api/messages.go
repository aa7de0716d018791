package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scalarai/helpdesk/internal/chat"
)

type MessagesHandler struct {
	chat *chat.Service
}

func NewMessagesHandler(cs *chat.Service) *MessagesHandler {
	return &MessagesHandler{chat: cs}
}

type createMessageRequest struct {
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
}

func (h *MessagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.ConversationID <= 0 {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	msg, err := h.chat.CreateMessage(r.Context(), req.ConversationID, uid, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrValidation):
			http.Error(w, "Content is required", http.StatusUnprocessableEntity)
		case errors.Is(err, chat.ErrNotFound):
			http.Error(w, "Conversation not found", http.StatusNotFound)
		default:
			http.Error(w, "Error creating message", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, msg, http.StatusCreated)
}

func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	mid, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}

	if err := h.chat.MarkRead(r.Context(), mid, uid); err != nil {
		switch {
		case errors.Is(err, chat.ErrNotFound):
			http.Error(w, "Message not found", http.StatusNotFound)
		case errors.Is(err, chat.ErrForbidden):
			http.Error(w, "Cannot mark your own messages as read", http.StatusForbidden)
		default:
			http.Error(w, "Error marking message read", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, map[string]string{"status": "read"}, http.StatusOK)
}
