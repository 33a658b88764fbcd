// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	eventqueue "github.com/okian/echochamber/internal/adapters/mq/queue"
	service "github.com/okian/echochamber/internal/app"
	"github.com/okian/echochamber/internal/domain/catalog"
	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	ActorDependencies
	FeedDependencies
	ClusterDependencies
	StatsProvider
}

// ActorDependencies registers and promotes actors.
type ActorDependencies interface {
	RegisterActor(ctx context.Context, spec service.ActorSpec) (model.Actor, error)
	Promote(ctx context.Context, id, newID string) (model.Actor, error)
}

// FeedDependencies serves ranked feeds.
type FeedDependencies interface {
	Feed(ctx context.Context, actor string, limit int) (types.Feed, error)
}

// ClusterDependencies exposes cluster labels and raw edges.
type ClusterDependencies interface {
	ClusterOf(ctx context.Context, actor string) (string, error)
	Clusters(ctx context.Context) ([]types.ClusterLabel, error)
	Snapshot(ctx context.Context, actor string) (types.ActorSnapshot, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	eventsHandler  *EventsHandler
	actorsHandler  *ActorsHandler
	feedHandler    *FeedHandler
	clusterHandler *ClusterHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		eventsHandler:  NewEventsHandler(deps),
		actorsHandler:  NewActorsHandler(deps),
		feedHandler:    NewFeedHandler(deps),
		clusterHandler: NewClusterHandler(deps),
	}
}

// NewRouter returns a chi router with the standard middleware stack.
func NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	return r
}

// Register attaches all HTTP routes to r. Everything but /metrics is instrumented.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/metrics", s.healthHandler.HandleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(Instrument)

		r.Get("/healthz", s.healthHandler.HandleHealth)
		r.Get("/stats", s.statsHandler.HandleStats)

		r.Post("/events", s.eventsHandler.HandlePostEvent)
		r.Post("/actors", s.actorsHandler.HandleRegister)
		r.Post("/actors/{id}/promote", s.actorsHandler.HandlePromote)

		r.Get("/feed/{id}", s.feedHandler.HandleGetFeed)
		r.Get("/cluster/{id}", s.clusterHandler.HandleGetCluster)
		r.Get("/clusters", s.clusterHandler.HandleGetClusters)
		r.Get("/snapshot/{id}", s.clusterHandler.HandleGetSnapshot)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service and domain errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, catalog.ErrInvalidActor):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, catalog.ErrActorNotFound), errors.Is(err, catalog.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, catalog.ErrActorExists):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, eventqueue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, eventqueue.ErrClosed), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
