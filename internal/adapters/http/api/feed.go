package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const maxFeedLimit = 200

// FeedHandler handles feed requests.
type FeedHandler struct {
	deps FeedDependencies
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(deps FeedDependencies) *FeedHandler {
	return &FeedHandler{deps: deps}
}

// HandleGetFeed handles GET /feed/{id}?limit=N requests. Without limit the
// configured feed size is used.
func (h *FeedHandler) HandleGetFeed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > maxFeedLimit {
			writeError(w, http.StatusBadRequest, "bad_request",
				badRequest(errors.New("limit must be between 1 and "+strconv.Itoa(maxFeedLimit))))
			return
		}
		limit = n
	}

	feed, err := h.deps.Feed(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}
