package filter

import (
	"slices"
	"strconv"
	"strings"

	"github.com/okian/tapp/internal/domain/model"
)

// Filter types.
const (
	TypeProgram           = "program"
	TypeDepartment        = "department"
	TypeYear              = "year"
	TypeStatus            = "status"
	TypeAssignedElsewhere = "assigned_elsewhere"
	TypeHours             = "hours"
)

// Filter accepts a summary when it satisfies at least one of Values.
type Filter struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

type predicate func(s model.ApplicantSummary, value string) bool

var predicates = map[string]predicate{
	TypeProgram: func(s model.ApplicantSummary, v string) bool {
		return strings.EqualFold(s.Application.Program, v)
	},
	TypeDepartment: func(s model.ApplicantSummary, v string) bool {
		return strings.EqualFold(s.Application.Department, v)
	},
	TypeYear:              matchYear,
	TypeStatus:            matchStatus,
	TypeAssignedElsewhere: matchAssignedElsewhere,
	TypeHours:             matchHours,
}

// Known reports whether t names a supported filter type.
func Known(t string) bool {
	_, ok := predicates[t]
	return ok
}

// Apply runs search, then filters, then sorts over summaries and returns a
// new slice. Filters are ANDed with each other and ORed within their values.
// Unknown filter types and filters without values are ignored.
func Apply(summaries []model.ApplicantSummary, search string, filters []Filter, sorts []Sort) []model.ApplicantSummary {
	search = strings.ToLower(strings.TrimSpace(search))

	active := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if Known(f.Type) && len(f.Values) > 0 {
			active = append(active, f)
		}
	}

	out := make([]model.ApplicantSummary, 0, len(summaries))
	for _, s := range summaries {
		if s.Applicant.Utorid == "" {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Applicant.SearchText()), search) {
			continue
		}
		if !passesAll(s, active) {
			continue
		}
		out = append(out, s)
	}

	sortSummaries(out, sorts)
	return out
}

func passesAll(s model.ApplicantSummary, filters []Filter) bool {
	for _, f := range filters {
		pred := predicates[f.Type]
		if !slices.ContainsFunc(f.Values, func(v string) bool { return pred(s, v) }) {
			return false
		}
	}
	return true
}

func matchYear(s model.ApplicantSummary, v string) bool {
	v = strings.TrimSpace(v)
	if floor, ok := strings.CutSuffix(v, "+"); ok {
		n, err := strconv.Atoi(floor)
		return err == nil && s.Application.YearInProgram >= n
	}
	n, err := strconv.Atoi(v)
	return err == nil && s.Application.YearInProgram == n
}

func matchStatus(s model.ApplicantSummary, v string) bool {
	switch v {
	case "assigned":
		return s.Match != nil && s.Match.Assigned()
	case "staged":
		return s.Match != nil && s.Match.StagedAssigned
	case "starred":
		return s.Match != nil && s.Match.Starred
	case "hidden":
		return s.Match != nil && s.Match.Hidden
	case "applied":
		_, ok := s.Application.Preferences[s.PositionCode]
		return ok
	}
	return false
}

func matchAssignedElsewhere(s model.ApplicantSummary, v string) bool {
	switch v {
	case "yes":
		return s.AssignedElsewhere()
	case "no":
		return !s.AssignedElsewhere()
	}
	return false
}

// matchHours compares fulfilled plus assigned hours with the guarantee.
// Applicants without a guarantee match no hours value.
func matchHours(s model.ApplicantSummary, v string) bool {
	if s.Guarantee == nil {
		return false
	}
	total := s.Guarantee.PrevHoursFulfilled + s.HoursAssigned()
	upper := s.Guarantee.MaxHoursOwed
	if upper < s.Guarantee.MinHoursOwed {
		upper = s.Guarantee.MinHoursOwed
	}
	switch v {
	case "under":
		return total < s.Guarantee.MinHoursOwed
	case "met":
		return total >= s.Guarantee.MinHoursOwed && total <= upper
	case "over":
		return total > upper
	}
	return false
}
