package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/tapp/internal/app"
	"github.com/okian/tapp/internal/domain/filter"
	"github.com/okian/tapp/internal/domain/model"
)

// ApplicantDependencies is the part of the service the applicant view
// uses.
type ApplicantDependencies interface {
	ApplicantsForPosition(ctx context.Context, positionCode string, q service.ApplicantQuery) ([]model.ApplicantSummary, error)
}

// ApplicantsHandler serves the per-position applicant view.
type ApplicantsHandler struct {
	deps ApplicantDependencies
}

// NewApplicantsHandler creates a new applicants handler.
func NewApplicantsHandler(deps ApplicantDependencies) *ApplicantsHandler {
	return &ApplicantsHandler{deps: deps}
}

// applicantView flattens the derived fields of a summary for clients.
type applicantView struct {
	model.ApplicantSummary
	HoursAssigned     float64 `json:"hoursAssigned"`
	HoursOwed         float64 `json:"hoursOwed"`
	AssignedElsewhere bool    `json:"assignedElsewhere"`
	Preference        int     `json:"preference"`
}

type applicantsResponse struct {
	PositionCode string          `json:"positionCode"`
	Applicants   []applicantView `json:"applicants"`
}

// HandleList handles GET /positions/{code}/applicants.
//
// Query parameters:
//
//	q       free-text search over name and utorid
//	filter  repeated, "type:value1,value2"
//	sort    repeated, "field" or "field:desc"; earlier sorts take priority
func (h *ApplicantsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	qs := r.URL.Query()

	summaries, err := h.deps.ApplicantsForPosition(r.Context(), code, service.ApplicantQuery{
		Search:  qs.Get("q"),
		Filters: filter.ParseFilters(qs["filter"]),
		Sorts:   filter.ParseSorts(qs["sort"]),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := applicantsResponse{PositionCode: code, Applicants: make([]applicantView, 0, len(summaries))}
	for _, s := range summaries {
		out.Applicants = append(out.Applicants, applicantView{
			ApplicantSummary:  s,
			HoursAssigned:     s.HoursAssigned(),
			HoursOwed:         s.HoursOwed(),
			AssignedElsewhere: s.AssignedElsewhere(),
			Preference:        s.Preference(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
