package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/qri-io/jsonschema"

	"github.com/scalarai/helpdesk/internal/assignment"
	"github.com/scalarai/helpdesk/internal/chat"
	"github.com/scalarai/helpdesk/internal/events"
	"github.com/scalarai/helpdesk/internal/routing"
	"github.com/scalarai/helpdesk/pkg/models"
	"github.com/scalarai/helpdesk/pkg/repository"
)

// profileUpdateSchema validates the profile update body before any field is
// touched: bio must be a string, knowledge_base_links an array of strings,
// nothing else accepted.
const profileUpdateSchema = `{
	"type": "object",
	"properties": {
		"bio": {"type": "string", "maxLength": 4000},
		"knowledge_base_links": {
			"type": "array",
			"items": {"type": "string", "maxLength": 2000},
			"maxItems": 20
		}
	},
	"additionalProperties": false
}`

type ExpertHandler struct {
	chat           *chat.Service
	assignments    *assignment.Service
	assignmentRepo repository.AssignmentRepo
	profileRepo    repository.ProfileRepo
	cache          *routing.ProfileCache
	dispatcher     events.Dispatcher
	schema         *jsonschema.Schema
}

func NewExpertHandler(cs *chat.Service, as *assignment.Service, ar repository.AssignmentRepo, pr repository.ProfileRepo, cache *routing.ProfileCache, dispatcher events.Dispatcher) (*ExpertHandler, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(profileUpdateSchema), rs); err != nil {
		return nil, err
	}
	if dispatcher == nil {
		dispatcher = events.NopDispatcher{}
	}
	return &ExpertHandler{
		chat:           cs,
		assignments:    as,
		assignmentRepo: ar,
		profileRepo:    pr,
		cache:          cache,
		dispatcher:     dispatcher,
		schema:         rs,
	}, nil
}

func (h *ExpertHandler) Queue(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	queue, err := h.chat.QueueSince(r.Context(), uid, 0)
	if err != nil {
		http.Error(w, "Error loading queue", http.StatusInternalServerError)
		return
	}

	writeJSON(w, queue, http.StatusOK)
}

func (h *ExpertHandler) Claim(w http.ResponseWriter, r *http.Request) {
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

	err := h.assignments.Claim(r.Context(), cid, uid)
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			http.Error(w, "Conversation not found", http.StatusNotFound)
		case errors.Is(err, assignment.ErrConflict):
			http.Error(w, "Conversation is already assigned to an expert", http.StatusUnprocessableEntity)
		default:
			http.Error(w, "Error claiming conversation", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, map[string]string{"status": "claimed"}, http.StatusOK)
}

func (h *ExpertHandler) Unclaim(w http.ResponseWriter, r *http.Request) {
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

	err := h.assignments.Unclaim(r.Context(), cid, uid)
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			http.Error(w, "Conversation not found", http.StatusNotFound)
		case errors.Is(err, assignment.ErrForbidden):
			http.Error(w, "You are not assigned to this conversation", http.StatusForbidden)
		default:
			http.Error(w, "Error unclaiming conversation", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, map[string]string{"status": "unclaimed"}, http.StatusOK)
}

func (h *ExpertHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profile, err := h.profileRepo.GetProfileByUserID(r.Context(), uid)
	if err != nil {
		http.Error(w, "Error loading profile", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}

	writeJSON(w, profile, http.StatusOK)
}

type profileUpdateRequest struct {
	Bio                *string   `json:"bio"`
	KnowledgeBaseLinks *[]string `json:"knowledge_base_links"`
}

func (h *ExpertHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	keyErrs, err := h.schema.ValidateBytes(ctx, body)
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if len(keyErrs) > 0 {
		writeJSON(w, map[string]any{"errors": keyErrs}, http.StatusUnprocessableEntity)
		return
	}

	var req profileUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	profile, err := h.profileRepo.GetProfileByUserID(ctx, uid)
	if err != nil {
		http.Error(w, "Error loading profile", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}

	linksChanged := false
	if req.Bio != nil {
		profile.Bio = *req.Bio
	}
	if req.KnowledgeBaseLinks != nil {
		linksChanged = !equalLinks(profile.KnowledgeBaseLinks, *req.KnowledgeBaseLinks)
		profile.KnowledgeBaseLinks = *req.KnowledgeBaseLinks
	}

	if err := h.profileRepo.UpdateProfile(ctx, profile); err != nil {
		http.Error(w, "Error updating profile", http.StatusInternalServerError)
		return
	}
	h.cache.Invalidate()

	h.dispatcher.Dispatch(ctx, events.ProfileUpdated{ProfileID: profile.ID, LinksChanged: linksChanged})

	updated, err := h.profileRepo.GetProfileByUserID(ctx, uid)
	if err != nil || updated == nil {
		http.Error(w, "Error loading profile", http.StatusInternalServerError)
		return
	}

	writeJSON(w, updated, http.StatusOK)
}

func (h *ExpertHandler) AssignmentHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	history, err := h.assignmentRepo.ListByExpert(r.Context(), uid)
	if err != nil {
		http.Error(w, "Error loading assignment history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []models.ExpertAssignment{}
	}

	writeJSON(w, map[string]any{"assignments": history}, http.StatusOK)
}

func equalLinks(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
