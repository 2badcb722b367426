package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/matchrank/internal/domain/types"
)

// ReportsHandler handles report listing and retrieval.
type ReportsHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps Dependencies, maxLimit int) *ReportsHandler {
	return &ReportsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleList handles GET /reports requests.
func (h *ReportsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /reports/{name}?snapshot=i&limit=n requests.
// snapshot indexes newest first and selects a single snapshot; limit cuts
// every returned leaderboard.
func (h *ReportsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := h.limit(q.Get("limit"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, code(err), err)
		return
	}

	rep, err := h.deps.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	snapshots := rep.Snapshots
	if raw := q.Get("snapshot"); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil || i < 0 || i >= len(rep.Snapshots) {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Errorf("%w: snapshot must be in [0, %d)", ErrBadRequest, len(rep.Snapshots)))
			return
		}
		snapshots = rep.Snapshots[i : i+1]
	}

	out := rep
	out.Snapshots = make([]types.Snapshot, len(snapshots))
	for i, s := range snapshots {
		if limit > 0 && len(s.Entries) > limit {
			s.Entries = s.Entries[:limit]
		}
		out.Snapshots[i] = s
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleTop handles GET /reports/{name}/top?limit=n requests. Only rated
// rows of the current snapshot are returned.
func (h *ReportsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	n, err := h.limit(r.URL.Query().Get("limit"), 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, code(err), err)
		return
	}
	entries, err := h.deps.Top(r.Context(), chi.URLParam(r, "name"), n)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// limit parses a limit parameter, returning def when it is absent.
func (h *ReportsHandler) limit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	if n > h.maxLimit {
		return 0, fmt.Errorf("%w: limit must not exceed %d", ErrLimitExceeded, h.maxLimit)
	}
	return n, nil
}

func code(err error) string {
	if errors.Is(err, ErrLimitExceeded) {
		return "limit_exceeded"
	}
	return "bad_request"
}
