// Package model contains the domain types shared by the match store, the
// filter pipeline and the persistence adapters.
package model

import (
	"strings"
	"time"
)

// keySeparator joins a position code and a utorid into a match key.
const keySeparator = "|"

// Key builds the match key for a (position, applicant) pair.
func Key(positionCode, utorid string) string {
	return positionCode + keySeparator + utorid
}

// SplitKey reverses Key. ok is false when either half is empty.
func SplitKey(key string) (positionCode, utorid string, ok bool) {
	positionCode, utorid, found := strings.Cut(key, keySeparator)
	if !found || positionCode == "" || utorid == "" {
		return "", "", false
	}
	return positionCode, utorid, true
}

// OfferStatus is the state of the offer attached to a persisted assignment.
// The zero value means no offer has been made.
type OfferStatus string

// Offer states.
const (
	OfferNone        OfferStatus = ""
	OfferProvisional OfferStatus = "provisional"
	OfferPending     OfferStatus = "pending"
	OfferAccepted    OfferStatus = "accepted"
	OfferRejected    OfferStatus = "rejected"
	OfferWithdrawn   OfferStatus = "withdrawn"
)

// Active reports whether the status blocks further edits of the assignment.
func (s OfferStatus) Active() bool {
	return s != OfferNone && s != OfferWithdrawn
}

// Applicant is the identity record of a person applying for TA positions.
type Applicant struct {
	ID            int64  `json:"id" db:"id" yaml:"id"`
	Utorid        string `json:"utorid" db:"utorid" yaml:"utorid"`
	FirstName     string `json:"first_name" db:"first_name" yaml:"first_name"`
	LastName      string `json:"last_name" db:"last_name" yaml:"last_name"`
	Email         string `json:"email" db:"email" yaml:"email"`
	StudentNumber string `json:"student_number" db:"student_number" yaml:"student_number"`
	Phone         string `json:"phone" db:"phone" yaml:"phone"`
}

// SearchText is the string matched by free-text search.
func (a Applicant) SearchText() string {
	return a.FirstName + " " + a.LastName + " " + a.Utorid
}

// Application carries the per-session application details used for
// filtering and sorting. Preferences maps position codes to a preference
// level; higher is more preferred.
type Application struct {
	Utorid        string         `json:"utorid" db:"utorid" yaml:"utorid"`
	Program       string         `json:"program" db:"program" yaml:"program"`
	Department    string         `json:"department" db:"department" yaml:"department"`
	YearInProgram int            `json:"year_in_program" db:"year_in_program" yaml:"year_in_program"`
	GPA           float64        `json:"gpa" db:"gpa" yaml:"gpa"`
	Preferences   map[string]int `json:"preferences" db:"-" yaml:"preferences"`
}

// Position is a course or job offering within a session.
type Position struct {
	ID                 int64     `json:"id" db:"id" yaml:"id"`
	PositionCode       string    `json:"position_code" db:"position_code" yaml:"position_code"`
	PositionTitle      string    `json:"position_title" db:"position_title" yaml:"position_title"`
	HoursPerAssignment float64   `json:"hours_per_assignment" db:"hours_per_assignment" yaml:"hours_per_assignment"`
	StartDate          time.Time `json:"start_date" db:"start_date" yaml:"start_date"`
	EndDate            time.Time `json:"end_date" db:"end_date" yaml:"end_date"`
	SessionID          int64     `json:"session_id" db:"session_id" yaml:"session_id"`
}

// Assignment is the persisted, server-of-record TA assignment.
type Assignment struct {
	ID                int64       `json:"id" db:"id" yaml:"id"`
	PositionID        int64       `json:"position_id" db:"position_id" yaml:"position_id"`
	ApplicantID       int64       `json:"applicant_id" db:"applicant_id" yaml:"applicant_id"`
	PositionCode      string      `json:"position_code" db:"position_code" yaml:"position_code"`
	Utorid            string      `json:"utorid" db:"utorid" yaml:"utorid"`
	Hours             float64     `json:"hours" db:"hours" yaml:"hours"`
	StartDate         *time.Time  `json:"start_date,omitempty" db:"start_date" yaml:"start_date,omitempty"`
	EndDate           *time.Time  `json:"end_date,omitempty" db:"end_date" yaml:"end_date,omitempty"`
	ActiveOfferStatus OfferStatus `json:"active_offer_status,omitempty" db:"active_offer_status" yaml:"active_offer_status,omitempty"`
}

// Key returns the match key of the assignment.
func (a Assignment) Key() string {
	return Key(a.PositionCode, a.Utorid)
}

// AssignmentInput is one item of a finalize batch.
type AssignmentInput struct {
	PositionID  int64   `json:"position_id"`
	ApplicantID int64   `json:"applicant_id"`
	Hours       float64 `json:"hours"`
}

// MatchableAssignment is a client-held record pairing an applicant with a
// position. Draft entries are staged but not yet finalized; non-draft
// entries may mirror a persisted assignment (AssignmentID != 0).
type MatchableAssignment struct {
	Utorid            string      `json:"utorid"`
	PositionCode      string      `json:"positionCode"`
	HoursAssigned     float64     `json:"hoursAssigned"`
	StagedAssigned    bool        `json:"stagedAssigned"`
	Starred           bool        `json:"starred"`
	Hidden            bool        `json:"hidden"`
	Draft             bool        `json:"draft"`
	Deleted           bool        `json:"deleted"`
	ActiveOfferStatus OfferStatus `json:"activeOfferStatus,omitempty"`
	AssignmentID      int64       `json:"assignmentId,omitempty"`
}

// Key returns the match key of the entry.
func (m MatchableAssignment) Key() string {
	return Key(m.PositionCode, m.Utorid)
}

// Assigned reports whether the entry mirrors a live persisted assignment.
func (m MatchableAssignment) Assigned() bool {
	return m.AssignmentID != 0 && !m.Deleted && m.ActiveOfferStatus != OfferWithdrawn
}

// CountsTowardHours reports whether HoursAssigned should be added to the
// applicant's total.
func (m MatchableAssignment) CountsTowardHours() bool {
	return m.Assigned() || m.StagedAssigned
}

// Raw converts the entry into its import/export form.
func (m MatchableAssignment) Raw() RawMatch {
	return RawMatch{
		Utorid:              m.Utorid,
		PositionCode:        m.PositionCode,
		Starred:             m.Starred,
		Hidden:              m.Hidden,
		StagedAssigned:      m.StagedAssigned,
		StagedHoursAssigned: m.HoursAssigned,
	}
}

// RawMatch is the flat serializable form of a match.
type RawMatch struct {
	Utorid              string  `json:"utorid"`
	PositionCode        string  `json:"positionCode"`
	Starred             bool    `json:"starred"`
	Hidden              bool    `json:"hidden"`
	StagedAssigned      bool    `json:"stagedAssigned"`
	StagedHoursAssigned float64 `json:"stagedHoursAssigned"`
}

// Key returns the match key of the raw record.
func (r RawMatch) Key() string {
	return Key(r.PositionCode, r.Utorid)
}

// Valid reports whether the record names both an applicant and a position.
func (r RawMatch) Valid() bool {
	return r.Utorid != "" && r.PositionCode != ""
}

// Guarantee records the hours an applicant is owed under their funding
// package.
type Guarantee struct {
	Utorid             string  `json:"utorid"`
	MinHoursOwed       float64 `json:"minHoursOwed"`
	MaxHoursOwed       float64 `json:"maxHoursOwed"`
	PrevHoursFulfilled float64 `json:"prevHoursFulfilled"`
}

// Note is a free-form administrator note about an applicant.
type Note struct {
	Utorid string `json:"utorid"`
	Note   string `json:"note"`
}
