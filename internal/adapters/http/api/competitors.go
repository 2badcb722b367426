package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CompetitorHandler handles competitor history requests.
type CompetitorHandler struct {
	deps Dependencies
}

// NewCompetitorHandler creates a new competitor handler.
func NewCompetitorHandler(deps Dependencies) *CompetitorHandler {
	return &CompetitorHandler{deps: deps}
}

// HandleHistory handles GET /reports/{name}/competitors/{key} requests.
func (h *CompetitorHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rep, err := h.deps.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	hist, ok := rep.History(key)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("competitor %q not in report %s", key, rep.Name))
		return
	}
	writeJSON(w, http.StatusOK, hist)
}
