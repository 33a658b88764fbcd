package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/echochamber/internal/app"
	"github.com/okian/echochamber/internal/domain/model"
)

type actorRequest struct {
	ID           string   `json:"id" validate:"omitempty,max=128"`
	Kind         string   `json:"kind" validate:"omitempty,oneof=human persona drifter"`
	PassiveDrift bool     `json:"passive_drift"`
	Durable      bool     `json:"durable"`
	TTLMS        int64    `json:"ttl_ms" validate:"gte=0"`
	Topics       []string `json:"topics" validate:"max=16,dive,required,max=64"`
}

type promoteRequest struct {
	NewID string `json:"new_id" validate:"omitempty,max=128"`
}

// ActorsHandler handles actor registration and promotion.
type ActorsHandler struct {
	deps ActorDependencies
}

// NewActorsHandler creates a new actors handler.
func NewActorsHandler(deps ActorDependencies) *ActorsHandler {
	return &ActorsHandler{deps: deps}
}

// HandleRegister handles POST /actors requests.
func (h *ActorsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", badRequest(err))
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	actor, err := h.deps.RegisterActor(r.Context(), service.ActorSpec{
		ID:           req.ID,
		Kind:         model.ActorKind(req.Kind),
		PassiveDrift: req.PassiveDrift,
		Durable:      req.Durable,
		TTL:          time.Duration(req.TTLMS) * time.Millisecond,
		Topics:       req.Topics,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, actor)
}

// HandlePromote handles POST /actors/{id}/promote requests. The body is
// optional; without new_id the actor is promoted in place.
func (h *ActorsHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", badRequest(err))
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	actor, err := h.deps.Promote(r.Context(), chi.URLParam(r, "id"), req.NewID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actor)
}
