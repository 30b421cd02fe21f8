package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/tapp/internal/app"
)

// FinalizeDependencies is the part of the service the finalize and sync
// routes use.
type FinalizeDependencies interface {
	Finalize(ctx context.Context, keys []string) (service.FinalizeReport, error)
	SyncAssignments(ctx context.Context) (int, error)
}

// FinalizeHandler serves draft finalization and assignment sync.
type FinalizeHandler struct {
	deps FinalizeDependencies
}

// NewFinalizeHandler creates a new finalize handler.
func NewFinalizeHandler(deps FinalizeDependencies) *FinalizeHandler {
	return &FinalizeHandler{deps: deps}
}

type partialResponse struct {
	errorResponse
	Report service.FinalizeReport `json:"report"`
}

// HandleFinalize handles POST /finalize. A batch the store confirmed only
// in part answers 409 with the report of what was finalized.
func (h *FinalizeHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, badRequest(err))
		return
	}

	report, err := h.deps.Finalize(r.Context(), req.Keys)
	var conflict *service.ConflictError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.As(err, &conflict) && len(report.Removed) > 0:
		writeJSON(w, http.StatusConflict, partialResponse{
			errorResponse: errorResponse{Code: "partial", Message: err.Error(), Conflicts: conflict.Items},
			Report:        report,
		})
	default:
		writeServiceError(w, err)
	}
}

type syncResponse struct {
	Assignments int `json:"assignments"`
}

// HandleSync handles POST /assignments/sync.
func (h *FinalizeHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.SyncAssignments(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Assignments: n})
}
