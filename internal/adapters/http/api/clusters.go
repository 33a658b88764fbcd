package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/echochamber/internal/domain/types"
)

type clustersResponse struct {
	Clusters []types.ClusterLabel `json:"clusters"`
	Members  map[string]int       `json:"members"`
}

// ClusterHandler serves cluster labels and actor snapshots.
type ClusterHandler struct {
	deps ClusterDependencies
}

// NewClusterHandler creates a new cluster handler.
func NewClusterHandler(deps ClusterDependencies) *ClusterHandler {
	return &ClusterHandler{deps: deps}
}

// HandleGetCluster handles GET /cluster/{id} requests.
func (h *ClusterHandler) HandleGetCluster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	label, err := h.deps.ClusterOf(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ClusterLabel{ActorID: id, Cluster: label})
}

// HandleGetClusters handles GET /clusters requests.
func (h *ClusterHandler) HandleGetClusters(w http.ResponseWriter, r *http.Request) {
	labels, err := h.deps.Clusters(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	members := make(map[string]int)
	for _, l := range labels {
		members[l.Cluster]++
	}
	writeJSON(w, http.StatusOK, clustersResponse{Clusters: labels, Members: members})
}

// HandleGetSnapshot handles GET /snapshot/{id} requests.
func (h *ClusterHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
