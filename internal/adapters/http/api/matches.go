package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/tapp/internal/domain/match"
	"github.com/okian/tapp/internal/domain/model"
)

// MatchDependencies is the part of the service the match routes use.
type MatchDependencies interface {
	Matches(ctx context.Context) ([]model.MatchableAssignment, error)
	Drafts(ctx context.Context) ([]model.MatchableAssignment, error)
	UpsertMatch(ctx context.Context, u match.Update) (model.MatchableAssignment, error)
	RemoveMatches(ctx context.Context, keys []string) ([]string, error)
	Forbidden(ctx context.Context, keys []string) (map[string]bool, error)
}

// MatchesHandler serves the draft match routes.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

type matchesResponse struct {
	Matches []model.MatchableAssignment `json:"matches"`
}

// HandleList handles GET /matches. With draft=true only staged drafts
// are returned.
func (h *MatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	draftsOnly := false
	if v := r.URL.Query().Get("draft"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeServiceError(w, badRequest(err))
			return
		}
		draftsOnly = b
	}

	list := h.deps.Matches
	if draftsOnly {
		list = h.deps.Drafts
	}
	out, err := list(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if out == nil {
		out = []model.MatchableAssignment{}
	}
	writeJSON(w, http.StatusOK, matchesResponse{Matches: out})
}

// HandleUpsert handles PUT /matches with a partial match body.
func (h *MatchesHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var u match.Update
	if err := decodeJSON(r, &u); err != nil {
		writeServiceError(w, badRequest(err))
		return
	}
	entry, err := h.deps.UpsertMatch(r.Context(), u)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type removeResponse struct {
	Removed []string `json:"removed"`
}

// HandleRemove handles POST /matches/remove.
func (h *MatchesHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, badRequest(err))
		return
	}
	removed, err := h.deps.RemoveMatches(r.Context(), req.Keys)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, removeResponse{Removed: removed})
}

// HandleForbidden handles GET /matches/forbidden?key=...&key=...
func (h *MatchesHandler) HandleForbidden(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	out, err := h.deps.Forbidden(r.Context(), keys)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
