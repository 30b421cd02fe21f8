package filter

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/tapp/internal/domain/model"
)

// Sort fields.
const (
	FieldName          = "name"
	FieldUtorid        = "utorid"
	FieldProgram       = "program"
	FieldDepartment    = "department"
	FieldYear          = "year"
	FieldGPA           = "gpa"
	FieldHoursAssigned = "hours_assigned"
	FieldHoursOwed     = "hours_owed"
	FieldPreference    = "preference"
)

// Sort orders summaries by Field. Later sorts break ties left by earlier
// ones.
type Sort struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

type comparator func(a, b model.ApplicantSummary) int

var comparators = map[string]comparator{
	FieldName: func(a, b model.ApplicantSummary) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Applicant.LastName), strings.ToLower(b.Applicant.LastName)),
			cmp.Compare(strings.ToLower(a.Applicant.FirstName), strings.ToLower(b.Applicant.FirstName)),
		)
	},
	FieldUtorid: func(a, b model.ApplicantSummary) int {
		return cmp.Compare(a.Applicant.Utorid, b.Applicant.Utorid)
	},
	FieldProgram: func(a, b model.ApplicantSummary) int {
		return cmp.Compare(strings.ToLower(a.Application.Program), strings.ToLower(b.Application.Program))
	},
	FieldDepartment: func(a, b model.ApplicantSummary) int {
		return cmp.Compare(strings.ToLower(a.Application.Department), strings.ToLower(b.Application.Department))
	},
	FieldYear: func(a, b model.ApplicantSummary) int {
		return cmp.Compare(a.Application.YearInProgram, b.Application.YearInProgram)
	},
	FieldGPA: func(a, b model.ApplicantSummary) int {
		return cmp.Compare(a.Application.GPA, b.Application.GPA)
	},
	FieldHoursAssigned: func(a, b model.ApplicantSummary) int {
		return cmp.Compare(a.HoursAssigned(), b.HoursAssigned())
	},
	FieldHoursOwed: func(a, b model.ApplicantSummary) int {
		return cmp.Compare(a.HoursOwed(), b.HoursOwed())
	},
	FieldPreference: func(a, b model.ApplicantSummary) int {
		return cmp.Compare(a.Preference(), b.Preference())
	},
}

// Sortable reports whether field names a supported sort field.
func Sortable(field string) bool {
	_, ok := comparators[field]
	return ok
}

// sortSummaries sorts in place. The sort is stable, so summaries equal on
// every key keep their input order. Unknown fields compare equal.
func sortSummaries(summaries []model.ApplicantSummary, sorts []Sort) {
	if len(sorts) == 0 {
		return
	}
	slices.SortStableFunc(summaries, func(a, b model.ApplicantSummary) int {
		for _, s := range sorts {
			compare, ok := comparators[s.Field]
			if !ok {
				continue
			}
			c := compare(a, b)
			if s.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
