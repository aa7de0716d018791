package api

import (
	"net/http"

	"github.com/scalarai/helpdesk/internal/chat"
	"github.com/scalarai/helpdesk/pkg/models"
)

// UpdatesHandler serves the incremental polling endpoints. The since
// boundary is inclusive so clients can safely pass the timestamp of the
// last item they saw without losing same-millisecond writes.
type UpdatesHandler struct {
	chat *chat.Service
}

func NewUpdatesHandler(cs *chat.Service) *UpdatesHandler {
	return &UpdatesHandler{chat: cs}
}

func (h *UpdatesHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	since, ok := parseSince(r)
	if !ok {
		http.Error(w, "Invalid since parameter", http.StatusBadRequest)
		return
	}

	convs, err := h.chat.ConversationsSince(r.Context(), uid, since)
	if err != nil {
		http.Error(w, "Error loading updates", http.StatusInternalServerError)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}

	writeJSON(w, map[string]any{"conversations": convs}, http.StatusOK)
}

func (h *UpdatesHandler) Messages(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	since, ok := parseSince(r)
	if !ok {
		http.Error(w, "Invalid since parameter", http.StatusBadRequest)
		return
	}

	msgs, err := h.chat.MessagesSince(r.Context(), uid, since)
	if err != nil {
		http.Error(w, "Error loading updates", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	writeJSON(w, map[string]any{"messages": msgs}, http.StatusOK)
}

func (h *UpdatesHandler) ExpertQueue(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	since, ok := parseSince(r)
	if !ok {
		http.Error(w, "Invalid since parameter", http.StatusBadRequest)
		return
	}

	queue, err := h.chat.QueueSince(r.Context(), uid, since)
	if err != nil {
		http.Error(w, "Error loading updates", http.StatusInternalServerError)
		return
	}

	writeJSON(w, queue, http.StatusOK)
}
