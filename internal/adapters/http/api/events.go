package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/okian/echochamber/internal/domain/model"
)

// EventDependencies defines the interface for event processing dependencies.
type EventDependencies interface {
	// Submit deduplicates and queues an event. duplicate reports a replay.
	Submit(ctx context.Context, ev model.Event) (duplicate bool, err error)
}

// eventRequest mirrors the OpenAPI schema for POST /events.
type eventRequest struct {
	EventID string       `json:"event_id" validate:"omitempty,max=128"`
	Kind    string       `json:"kind" validate:"required,oneof=reaction exposure authored"`
	ActorID string       `json:"actor_id" validate:"required,max=128"`
	ItemID  string       `json:"item_id" validate:"required_unless=Kind authored,max=128"`
	Retract bool         `json:"retract"`
	Item    *itemRequest `json:"item" validate:"required_if=Kind authored"`
	TS      string       `json:"ts"`
}

type itemRequest struct {
	ID     string   `json:"id" validate:"omitempty,max=128"`
	Topics []string `json:"topics" validate:"required,min=1,max=16,dive,required,max=64"`
}

// toEvent converts a validated request into a domain event.
func (e eventRequest) toEvent() (model.Event, error) {
	ev := model.Event{
		EventID: e.EventID,
		Kind:    model.EventKind(e.Kind),
		ActorID: e.ActorID,
		ItemID:  e.ItemID,
		Retract: e.Retract,
	}
	if e.TS != "" {
		ts, err := time.Parse(time.RFC3339, e.TS)
		if err != nil {
			return model.Event{}, badRequest(errors.New("invalid ts; must be RFC3339"))
		}
		ev.TS = ts
	}
	if ev.Kind == model.EventAuthored {
		id := e.Item.ID
		if id == "" {
			id = uuid.NewString()
		}
		ev.ItemID = id
		ev.Item = &model.ContentItem{
			ID:        id,
			AuthorID:  e.ActorID,
			Topics:    e.Item.Topics,
			CreatedAt: ev.TS,
		}
	}
	return ev, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ItemID    string `json:"item_id,omitempty"`
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", badRequest(err))
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	ev, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	duplicate, err := h.deps.Submit(r.Context(), ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	ack := ackResponse{Status: "accepted"}
	if ev.Item != nil {
		ack.ItemID = ev.Item.ID
	}
	writeJSON(w, http.StatusAccepted, ack)
}
