package model

// ApplicantSummary is a read-only projection of an applicant together with
// every match they hold, viewed from one position. It is rebuilt on every
// read and never stored.
type ApplicantSummary struct {
	PositionCode string                `json:"positionCode"`
	Applicant    Applicant             `json:"applicant"`
	Application  Application           `json:"application"`
	Guarantee    *Guarantee            `json:"guarantee,omitempty"`
	Note         string                `json:"note,omitempty"`
	Match        *MatchableAssignment  `json:"match,omitempty"`
	Matches      []MatchableAssignment `json:"matches"`
}

// HoursAssigned totals hours over every assigned or staged match.
func (s ApplicantSummary) HoursAssigned() float64 {
	var total float64
	for _, m := range s.Matches {
		if m.CountsTowardHours() {
			total += m.HoursAssigned
		}
	}
	return total
}

// HoursOwed is the guaranteed minimum still outstanding after previous
// and current assignments. It is zero without a guarantee.
func (s ApplicantSummary) HoursOwed() float64 {
	if s.Guarantee == nil {
		return 0
	}
	return s.Guarantee.MinHoursOwed - s.Guarantee.PrevHoursFulfilled - s.HoursAssigned()
}

// AssignedElsewhere reports whether the applicant is assigned or staged to
// a position other than the one being viewed.
func (s ApplicantSummary) AssignedElsewhere() bool {
	for _, m := range s.Matches {
		if m.PositionCode != s.PositionCode && m.CountsTowardHours() {
			return true
		}
	}
	return false
}

// Preference returns the applicant's preference level for the viewed
// position, or zero when they did not rank it.
func (s ApplicantSummary) Preference() int {
	return s.Application.Preferences[s.PositionCode]
}
