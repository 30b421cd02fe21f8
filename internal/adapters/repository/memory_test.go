package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tapp/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const seedYAML = `
applicants:
  - utorid: smithj
    first_name: Jane
    last_name: Smith
    email: jane.smith@example.com
  - utorid: abc123
    first_name: Alex
    last_name: Chen
applications:
  - utorid: smithj
    program: PhD
    department: CS
    year_in_program: 3
    gpa: 3.8
    preferences:
      CSC108: 3
positions:
  - position_code: CSC148
    position_title: Intro CS II
    hours_per_assignment: 54
    start_date: 2025-09-01
    end_date: 2025-12-20
    session_id: 1
  - position_code: CSC108
    position_title: Intro CS I
    hours_per_assignment: 70
    start_date: 2025-09-01
    end_date: 2025-12-20
    session_id: 1
assignments:
  - position_code: CSC148
    utorid: smithj
    hours: 54
    active_offer_status: accepted
`

func newSeededStore() *MemoryStore {
	seed, err := ParseSeed([]byte(seedYAML))
	So(err, ShouldBeNil)
	s, err := NewMemoryStore(WithSeed(seed))
	So(err, ShouldBeNil)
	return s
}

func TestSeed(t *testing.T) {
	Convey("Given a seed file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		So(os.WriteFile(path, []byte(seedYAML), 0o600), ShouldBeNil)

		Convey("When it is loaded", func() {
			seed, err := LoadSeed(path)

			Convey("Then every section decodes", func() {
				So(err, ShouldBeNil)
				So(seed.Applicants, ShouldHaveLength, 2)
				So(seed.Applications[0].Preferences["CSC108"], ShouldEqual, 3)
				So(seed.Positions[1].StartDate.Format(time.DateOnly), ShouldEqual, "2025-09-01")
				So(seed.Assignments[0].ActiveOfferStatus, ShouldEqual, model.OfferAccepted)
			})
		})
	})

	Convey("Given a missing seed file", t, func() {
		_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))

		Convey("Then loading fails", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given invalid seeds", t, func() {
		_, err := ParseSeed([]byte("applicants: {"))
		So(errors.Is(err, ErrInvalidSeed), ShouldBeTrue)

		_, err = NewMemoryStore(WithSeed(Seed{Applicants: []model.Applicant{{Utorid: "a"}, {Utorid: "a"}}}))
		So(errors.Is(err, ErrInvalidSeed), ShouldBeTrue)

		_, err = NewMemoryStore(WithSeed(Seed{Assignments: []model.Assignment{{PositionCode: "X", Utorid: "a"}}}))
		So(errors.Is(err, ErrInvalidSeed), ShouldBeTrue)
	})
}

func TestMemoryStore_Catalog(t *testing.T) {
	Convey("Given a seeded memory store", t, func() {
		s := newSeededStore()
		ctx := context.Background()

		Convey("Then applicants come back ordered by name with IDs", func() {
			applicants, err := s.Applicants(ctx)
			So(err, ShouldBeNil)
			So(applicants[0].Utorid, ShouldEqual, "abc123")
			So(applicants[0].ID, ShouldEqual, 2)
			So(applicants[1].Utorid, ShouldEqual, "smithj")
		})

		Convey("And positions come back ordered by code", func() {
			positions, err := s.Positions(ctx)
			So(err, ShouldBeNil)
			So(positions[0].PositionCode, ShouldEqual, "CSC108")
			So(positions[0].ID, ShouldEqual, 2)
		})

		Convey("And applications are returned", func() {
			apps, err := s.Applications(ctx)
			So(err, ShouldBeNil)
			So(apps, ShouldHaveLength, 1)
		})

		Convey("And seeded assignments are resolved to IDs", func() {
			list, err := s.ListAssignments(ctx)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
			So(list[0].ID, ShouldEqual, 1)
			So(list[0].PositionID, ShouldEqual, 1)
			So(list[0].ApplicantID, ShouldEqual, 1)
		})
	})
}

func TestMemoryStore_UpsertAssignments(t *testing.T) {
	Convey("Given a seeded memory store", t, func() {
		s := newSeededStore()
		ctx := context.Background()

		Convey("When upserting new and blocked assignments", func() {
			out, err := s.UpsertAssignments(ctx, []model.AssignmentInput{
				{PositionID: 2, ApplicantID: 2, Hours: 70},
				{PositionID: 1, ApplicantID: 1, Hours: 20},
				{PositionID: 99, ApplicantID: 1, Hours: 10},
				{PositionID: 2, ApplicantID: 1, Hours: -5},
			})

			Convey("Then only the writable input is confirmed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0].Key(), ShouldEqual, "CSC108|abc123")
				So(out[0].Hours, ShouldEqual, 70)
				So(out[0].ID, ShouldEqual, 2)
				So(out[0].StartDate, ShouldNotBeNil)
			})

			Convey("And a second upsert updates hours in place", func() {
				again, err := s.UpsertAssignments(ctx, []model.AssignmentInput{{PositionID: 2, ApplicantID: 2, Hours: 35}})
				So(err, ShouldBeNil)
				So(again[0].ID, ShouldEqual, 2)
				So(again[0].Hours, ShouldEqual, 35)
				list, _ := s.ListAssignments(ctx)
				So(list, ShouldHaveLength, 2)
			})
		})

		Convey("When the accepted offer is withdrawn", func() {
			So(s.SetOfferStatus(ctx, "CSC148", "smithj", model.OfferWithdrawn), ShouldBeNil)
			out, err := s.UpsertAssignments(ctx, []model.AssignmentInput{{PositionID: 1, ApplicantID: 1, Hours: 20}})

			Convey("Then the assignment can be updated", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0].Hours, ShouldEqual, 20)
			})
		})

		Convey("When setting the offer of an unknown pair", func() {
			err := s.SetOfferStatus(ctx, "CSC999", "nobody", model.OfferPending)

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given a slow memory store", t, func() {
		s, err := NewMemoryStore(WithLatencyRange(50*time.Millisecond, 100*time.Millisecond))
		So(err, ShouldBeNil)

		Convey("When the context expires first", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
			defer cancel()
			_, err := s.UpsertAssignments(ctx, []model.AssignmentInput{{PositionID: 1, ApplicantID: 1}})

			Convey("Then the deadline error is returned", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})
}
