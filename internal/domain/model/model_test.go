package model

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKey(t *testing.T) {
	Convey("Given a position code and utorid", t, func() {
		key := Key("CSC108", "abc123")

		Convey("Then the key joins them position first", func() {
			So(key, ShouldEqual, "CSC108|abc123")
		})

		Convey("And SplitKey reverses it", func() {
			pos, utorid, ok := SplitKey(key)
			So(ok, ShouldBeTrue)
			So(pos, ShouldEqual, "CSC108")
			So(utorid, ShouldEqual, "abc123")
		})
	})

	Convey("Given malformed keys", t, func() {
		for _, key := range []string{"", "CSC108", "|abc123", "CSC108|"} {
			_, _, ok := SplitKey(key)
			So(ok, ShouldBeFalse)
		}
	})
}

func TestOfferStatus(t *testing.T) {
	Convey("Given offer states", t, func() {
		So(OfferNone.Active(), ShouldBeFalse)
		So(OfferWithdrawn.Active(), ShouldBeFalse)
		So(OfferProvisional.Active(), ShouldBeTrue)
		So(OfferPending.Active(), ShouldBeTrue)
		So(OfferAccepted.Active(), ShouldBeTrue)
		So(OfferRejected.Active(), ShouldBeTrue)
	})
}

func TestMatchableAssignmentRaw(t *testing.T) {
	Convey("Given a staged match", t, func() {
		m := MatchableAssignment{
			Utorid:         "abc123",
			PositionCode:   "CSC108",
			HoursAssigned:  70,
			StagedAssigned: true,
			Starred:        true,
			Draft:          true,
		}

		Convey("When converting to raw form", func() {
			raw := m.Raw()

			Convey("Then the tracked fields carry over", func() {
				So(raw, ShouldResemble, RawMatch{
					Utorid:              "abc123",
					PositionCode:        "CSC108",
					Starred:             true,
					StagedAssigned:      true,
					StagedHoursAssigned: 70,
				})
				So(raw.Key(), ShouldEqual, m.Key())
				So(raw.Valid(), ShouldBeTrue)
			})
		})
	})

	Convey("Given persisted entries", t, func() {
		live := MatchableAssignment{AssignmentID: 4, ActiveOfferStatus: OfferAccepted}
		withdrawn := MatchableAssignment{AssignmentID: 4, ActiveOfferStatus: OfferWithdrawn}
		deleted := MatchableAssignment{AssignmentID: 4, Deleted: true}

		So(live.Assigned(), ShouldBeTrue)
		So(withdrawn.Assigned(), ShouldBeFalse)
		So(deleted.Assigned(), ShouldBeFalse)
		So(MatchableAssignment{StagedAssigned: true}.CountsTowardHours(), ShouldBeTrue)
	})
}

func TestApplicantSummary(t *testing.T) {
	Convey("Given an applicant with matches on two positions", t, func() {
		s := ApplicantSummary{
			PositionCode: "CSC108",
			Applicant:    Applicant{Utorid: "abc123", FirstName: "Ada", LastName: "Lovelace"},
			Application:  Application{Preferences: map[string]int{"CSC108": 3}},
			Guarantee:    &Guarantee{MinHoursOwed: 140, PrevHoursFulfilled: 20},
			Matches: []MatchableAssignment{
				{PositionCode: "CSC108", HoursAssigned: 50, StagedAssigned: true},
				{PositionCode: "CSC148", HoursAssigned: 30, AssignmentID: 9, ActiveOfferStatus: OfferAccepted},
				{PositionCode: "CSC209", HoursAssigned: 99, Starred: true},
			},
		}

		Convey("Then hours count staged and assigned matches only", func() {
			So(s.HoursAssigned(), ShouldEqual, 80)
			So(s.HoursOwed(), ShouldEqual, 40)
		})

		Convey("And the applicant is assigned elsewhere", func() {
			So(s.AssignedElsewhere(), ShouldBeTrue)
		})

		Convey("And the preference for the viewed position is known", func() {
			So(s.Preference(), ShouldEqual, 3)
			So(s.Applicant.SearchText(), ShouldEqual, "Ada Lovelace abc123")
		})
	})

	Convey("Given an applicant without a guarantee", t, func() {
		s := ApplicantSummary{PositionCode: "CSC108"}
		So(s.HoursOwed(), ShouldEqual, 0)
		So(s.AssignedElsewhere(), ShouldBeFalse)
		So(s.Preference(), ShouldEqual, 0)
	})
}
