package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scalarai/helpdesk/internal/chat"
	"github.com/scalarai/helpdesk/pkg/models"
)

type ConversationsHandler struct {
	chat *chat.Service
}

func NewConversationsHandler(cs *chat.Service) *ConversationsHandler {
	return &ConversationsHandler{chat: cs}
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	conv, err := h.chat.CreateConversation(r.Context(), id, req.Title)
	if err != nil {
		if errors.Is(err, chat.ErrValidation) {
			http.Error(w, "Title is required", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "Error creating conversation", http.StatusInternalServerError)
		return
	}

	writeJSON(w, conv, http.StatusCreated)
}

func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	convs, err := h.chat.ListConversations(r.Context(), id)
	if err != nil {
		http.Error(w, "Error listing conversations", http.StatusInternalServerError)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}

	writeJSON(w, map[string]any{"conversations": convs}, http.StatusOK)
}

func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	cid, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid conversation id", http.StatusBadRequest)
		return
	}

	conv, err := h.chat.GetConversation(r.Context(), cid, uid)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Error loading conversation", http.StatusInternalServerError)
		return
	}

	writeJSON(w, conv, http.StatusOK)
}

func (h *ConversationsHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	cid, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid conversation id", http.StatusBadRequest)
		return
	}

	msgs, err := h.chat.ListMessages(r.Context(), cid, uid)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Error listing messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	writeJSON(w, map[string]any{"messages": msgs}, http.StatusOK)
}
