// Package filter builds the applicant summaries shown for a position and
// runs them through search, structured filters, and stable multi-key sorts.
// Every function here is pure: inputs are never modified and malformed
// records are dropped rather than reported.
package filter

import "github.com/okian/tapp/internal/domain/model"

// View is the read side of the match store needed to build summaries.
// A match.Snapshot gives every lookup the same state.
type View interface {
	ForApplicant(utorid string) []model.MatchableAssignment
	ForPosition(positionCode string) []model.MatchableAssignment
	Guarantee(utorid string) (model.Guarantee, bool)
	Note(utorid string) string
}

// Summaries returns one summary per applicant that applied to positionCode
// or holds a match for it, in applicants order. Applicants without a
// utorid are skipped.
func Summaries(positionCode string, applicants []model.Applicant, applications []model.Application, view View) []model.ApplicantSummary {
	byUtorid := make(map[string]model.Application, len(applications))
	for _, app := range applications {
		if app.Utorid != "" {
			byUtorid[app.Utorid] = app
		}
	}

	matched := make(map[string]struct{})
	for _, m := range view.ForPosition(positionCode) {
		matched[m.Utorid] = struct{}{}
	}

	out := make([]model.ApplicantSummary, 0, len(applicants))
	for _, a := range applicants {
		if a.Utorid == "" {
			continue
		}
		app, hasApp := byUtorid[a.Utorid]
		_, applied := app.Preferences[positionCode]
		_, hasMatch := matched[a.Utorid]
		if !(hasApp && applied) && !hasMatch {
			continue
		}
		out = append(out, summarize(positionCode, a, app, view))
	}
	return out
}

func summarize(positionCode string, a model.Applicant, app model.Application, view View) model.ApplicantSummary {
	s := model.ApplicantSummary{
		PositionCode: positionCode,
		Applicant:    a,
		Application:  app,
		Note:         view.Note(a.Utorid),
		Matches:      view.ForApplicant(a.Utorid),
	}
	if g, ok := view.Guarantee(a.Utorid); ok {
		s.Guarantee = &g
	}
	for i := range s.Matches {
		if s.Matches[i].PositionCode == positionCode {
			m := s.Matches[i]
			s.Match = &m
			break
		}
	}
	return s
}
