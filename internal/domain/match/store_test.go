package match

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/tapp/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr[T any](v T) *T { return &v }

type fakeResolver struct {
	applicants map[string]bool
	positions  map[string]bool
}

func (r fakeResolver) HasApplicant(utorid string) bool     { return r.applicants[utorid] }
func (r fakeResolver) HasPosition(positionCode string) bool { return r.positions[positionCode] }

func TestStore_Upsert(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := NewStore()

		Convey("When upserting a key with no fields", func() {
			entry, err := s.Upsert(Update{PositionCode: "CSC108", Utorid: "abc123"})

			Convey("Then an entry with defaults is created", func() {
				So(err, ShouldBeNil)
				So(entry, ShouldResemble, model.MatchableAssignment{Utorid: "abc123", PositionCode: "CSC108"})
				So(s.Updated(), ShouldBeTrue)
				So(s.Version(), ShouldEqual, 1)
			})
		})

		Convey("When staging and then starring the same key", func() {
			_, err := s.Upsert(Update{PositionCode: "CSC108", Utorid: "abc123", StagedAssigned: ptr(true), HoursAssigned: ptr(70.0)})
			So(err, ShouldBeNil)
			entry, err := s.Upsert(Update{PositionCode: "CSC108", Utorid: "abc123", Starred: ptr(true)})

			Convey("Then fields merge and one entry exists", func() {
				So(err, ShouldBeNil)
				So(entry.StagedAssigned, ShouldBeTrue)
				So(entry.Draft, ShouldBeTrue)
				So(entry.Starred, ShouldBeTrue)
				So(entry.HoursAssigned, ShouldEqual, 70)
				entries, drafts := s.Len()
				So(entries, ShouldEqual, 1)
				So(drafts, ShouldEqual, 1)
			})
		})

		Convey("When un-staging a draft", func() {
			_, _ = s.Upsert(Update{PositionCode: "CSC108", Utorid: "abc123", StagedAssigned: ptr(true)})
			entry, _ := s.Upsert(Update{PositionCode: "CSC108", Utorid: "abc123", StagedAssigned: ptr(false)})

			Convey("Then it is no longer a draft", func() {
				So(entry.Draft, ShouldBeFalse)
				So(s.Drafts(), ShouldBeEmpty)
			})
		})

		Convey("When the key is incomplete", func() {
			_, err := s.Upsert(Update{Utorid: "abc123"})

			Convey("Then ErrInvalidKey is returned and nothing changes", func() {
				So(errors.Is(err, ErrInvalidKey), ShouldBeTrue)
				So(s.List(), ShouldBeEmpty)
				So(s.Updated(), ShouldBeFalse)
			})
		})

		Convey("When hours are negative or not finite", func() {
			_, err1 := s.Upsert(Update{PositionCode: "CSC108", Utorid: "abc123", HoursAssigned: ptr(-1.0)})
			_, err2 := s.Upsert(Update{PositionCode: "CSC108", Utorid: "abc123", HoursAssigned: ptr(math.Inf(1))})

			Convey("Then ErrInvalidHours is returned", func() {
				So(errors.Is(err1, ErrInvalidHours), ShouldBeTrue)
				So(errors.Is(err2, ErrInvalidHours), ShouldBeTrue)
			})
		})
	})
}

func TestStore_Queries(t *testing.T) {
	Convey("Given a store with several entries", t, func() {
		s := NewStore()
		_, _ = s.Upsert(Update{PositionCode: "CSC108", Utorid: "b", StagedAssigned: ptr(true)})
		_, _ = s.Upsert(Update{PositionCode: "CSC148", Utorid: "a", Starred: ptr(true)})
		_, _ = s.Upsert(Update{PositionCode: "CSC108", Utorid: "a", Hidden: ptr(true)})

		Convey("Then listings keep insertion order", func() {
			keys := []string{}
			for _, m := range s.List() {
				keys = append(keys, m.Key())
			}
			So(keys, ShouldResemble, []string{"CSC108|b", "CSC148|a", "CSC108|a"})
		})

		Convey("And per-applicant and per-position views filter", func() {
			So(s.ForApplicant("a"), ShouldHaveLength, 2)
			So(s.ForPosition("CSC108"), ShouldHaveLength, 2)
			So(s.Drafts(), ShouldHaveLength, 1)
		})

		Convey("And Raw mirrors the entries", func() {
			raw := s.Raw()
			So(raw, ShouldHaveLength, 3)
			So(raw[2], ShouldResemble, model.RawMatch{Utorid: "a", PositionCode: "CSC108", Hidden: true})
		})

		Convey("When removing keys", func() {
			res, err := s.Apply(RemoveCommand{Keys: []string{"CSC148|a", "missing|x"}})

			Convey("Then only existing keys are reported", func() {
				So(err, ShouldBeNil)
				So(res.Removed, ShouldResemble, []string{"CSC148|a"})
				_, ok := s.Get("CSC148|a")
				So(ok, ShouldBeFalse)
				So(s.List(), ShouldHaveLength, 2)
			})
		})

		Convey("When marking the store saved", func() {
			_, err := s.Apply(MarkSavedCommand{})

			Convey("Then the updated flag clears", func() {
				So(err, ShouldBeNil)
				So(s.Updated(), ShouldBeFalse)
			})
		})

		Convey("When marking saved at the current version", func() {
			_, err := s.Apply(MarkSavedCommand{Version: s.Version()})

			Convey("Then the updated flag clears", func() {
				So(err, ShouldBeNil)
				So(s.Updated(), ShouldBeFalse)
			})
		})

		Convey("When the store changes after the saved version was read", func() {
			saved := s.Version()
			_, err := s.Upsert(Update{PositionCode: "CSC148", Utorid: "b", Starred: ptr(true)})
			So(err, ShouldBeNil)
			s.MarkSaved()
			So(s.Updated(), ShouldBeFalse)
			_, err = s.Upsert(Update{PositionCode: "CSC148", Utorid: "b", Hidden: ptr(true)})
			So(err, ShouldBeNil)
			_, err = s.Apply(MarkSavedCommand{Version: saved})

			Convey("Then the later change stays unsaved", func() {
				So(err, ShouldBeNil)
				So(s.Updated(), ShouldBeTrue)
			})
		})

		Convey("When a snapshot is taken before further changes", func() {
			snap := s.Snapshot()
			before := s.List()
			s.SetGuarantee(model.Guarantee{Utorid: "a", MinHoursOwed: 60})
			s.SetNote("a", "later")
			_, err := s.Upsert(Update{PositionCode: "CSC108", Utorid: "a", HoursAssigned: ptr(12.0)})
			So(err, ShouldBeNil)
			s.Remove("CSC148|a")

			Convey("Then the snapshot keeps the state it was taken at", func() {
				So(snap.List(), ShouldResemble, before)
				So(snap.Version(), ShouldBeLessThan, s.Version())
				So(snap.ForPosition("CSC148"), ShouldHaveLength, 1)
				So(snap.ForApplicant("a"), ShouldHaveLength, 2)
				_, ok := snap.Guarantee("a")
				So(ok, ShouldBeFalse)
				So(snap.Note("a"), ShouldEqual, "")
				So(snap.Guarantees(), ShouldBeEmpty)
				So(snap.Notes(), ShouldBeEmpty)
				So(snap.Raw(), ShouldHaveLength, len(before))
			})
		})
	})
}

func TestStore_Import(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := NewStore()
		record := model.RawMatch{
			Utorid:              "abc123",
			PositionCode:        "CSC108",
			Starred:             true,
			StagedAssigned:      true,
			StagedHoursAssigned: 70,
		}

		Convey("When importing a single staged match", func() {
			res, err := s.Apply(ImportCommand{Matches: []model.RawMatch{record}})

			Convey("Then the diff yields exactly that record", func() {
				So(err, ShouldBeNil)
				So(res.Applied, ShouldResemble, []model.RawMatch{record})
			})

			Convey("And the store holds a staged draft with its hours", func() {
				entry, ok := s.Get("CSC108|abc123")
				So(ok, ShouldBeTrue)
				So(entry.HoursAssigned, ShouldEqual, 70)
				So(entry.StagedAssigned, ShouldBeTrue)
				So(entry.Starred, ShouldBeTrue)
				So(entry.Draft, ShouldBeTrue)
			})

			Convey("And importing it again applies nothing", func() {
				version := s.Version()
				again, err := s.Apply(ImportCommand{Matches: []model.RawMatch{record}})
				So(err, ShouldBeNil)
				So(again.Applied, ShouldBeEmpty)
				So(s.Version(), ShouldEqual, version)
			})
		})

		Convey("When a resolver rejects unknown references", func() {
			resolver := fakeResolver{
				applicants: map[string]bool{"abc123": true},
				positions:  map[string]bool{"CSC108": true},
			}
			res, err := s.Apply(ImportCommand{
				Matches: []model.RawMatch{
					record,
					{Utorid: "ghost", PositionCode: "CSC108"},
					{Utorid: "abc123", PositionCode: "NOPE1"},
					{Utorid: "abc123", PositionCode: "CSC108", StagedHoursAssigned: -3},
				},
				Guarantees: []model.Guarantee{{Utorid: "abc123", MinHoursOwed: 140}, {Utorid: "ghost"}},
				Notes:      []model.Note{{Utorid: "abc123", Note: "prefers labs"}},
				Resolver:   resolver,
			})

			Convey("Then the bad records are skipped with reasons", func() {
				So(err, ShouldBeNil)
				So(res.Applied, ShouldHaveLength, 1)
				reasons := map[string]string{}
				for _, sk := range res.Skipped {
					reasons[sk.Key] = sk.Reason
				}
				So(reasons["CSC108|ghost"], ShouldEqual, "unknown applicant")
				So(reasons["NOPE1|abc123"], ShouldEqual, "unknown position")
				So(reasons["CSC108|abc123"], ShouldEqual, "invalid stagedHoursAssigned")
				So(reasons["ghost"], ShouldEqual, "unknown applicant")
			})

			Convey("And guarantees and notes are recorded", func() {
				So(res.Guarantees, ShouldEqual, 1)
				So(res.Notes, ShouldEqual, 1)
				g, ok := s.Guarantee("abc123")
				So(ok, ShouldBeTrue)
				So(g.MinHoursOwed, ShouldEqual, 140)
				So(s.Note("abc123"), ShouldEqual, "prefers labs")
				So(s.Notes(), ShouldResemble, []model.Note{{Utorid: "abc123", Note: "prefers labs"}})
				So(s.Guarantees(), ShouldHaveLength, 1)
			})
		})

		Convey("When an import only changes untracked state", func() {
			_, _ = s.Apply(ImportCommand{Matches: []model.RawMatch{record}})
			_, _ = s.Apply(SyncAssignmentsCommand{Assignments: []model.Assignment{
				{ID: 1, PositionCode: "CSC108", Utorid: "abc123", Hours: 70, ActiveOfferStatus: model.OfferPending},
			}})
			res, _ := s.Apply(ImportCommand{Matches: []model.RawMatch{record}})

			Convey("Then nothing is applied", func() {
				So(res.Applied, ShouldBeEmpty)
			})
		})
	})
}

func TestStore_Forbidden(t *testing.T) {
	Convey("Given entries with different offer states", t, func() {
		s := NewStore()
		_, err := s.Apply(SyncAssignmentsCommand{Assignments: []model.Assignment{
			{ID: 1, PositionCode: "CSC108", Utorid: "x", ActiveOfferStatus: model.OfferAccepted},
			{ID: 2, PositionCode: "CSC108", Utorid: "w", ActiveOfferStatus: model.OfferWithdrawn},
			{ID: 3, PositionCode: "CSC108", Utorid: "n"},
		}})
		So(err, ShouldBeNil)

		Convey("Then an accepted offer forbids finalizing", func() {
			So(s.IsForbidden("CSC108", "x"), ShouldBeTrue)
		})

		Convey("And a withdrawn offer does not", func() {
			So(s.IsForbidden("CSC108", "w"), ShouldBeFalse)
		})

		Convey("And no offer or no entry does not", func() {
			So(s.IsForbidden("CSC108", "n"), ShouldBeFalse)
			So(s.IsForbidden("CSC108", "nobody"), ShouldBeFalse)
		})

		Convey("When the accepted assignment disappears on the next sync", func() {
			res, err := s.Apply(SyncAssignmentsCommand{Assignments: []model.Assignment{
				{ID: 2, PositionCode: "CSC108", Utorid: "w", ActiveOfferStatus: model.OfferWithdrawn},
			}})

			Convey("Then it is marked deleted and no longer forbidden", func() {
				So(err, ShouldBeNil)
				entry, _ := s.Get("CSC108|x")
				So(entry.Deleted, ShouldBeTrue)
				So(s.IsForbidden("CSC108", "x"), ShouldBeFalse)
				So(len(res.Entries), ShouldBeGreaterThanOrEqualTo, 2)
			})
		})
	})

	Convey("Given a nil or deleted entry", t, func() {
		So(IsForbidden(nil), ShouldBeFalse)
		So(IsForbidden(&model.MatchableAssignment{Deleted: true, ActiveOfferStatus: model.OfferAccepted}), ShouldBeFalse)
	})
}

func TestStore_CommitFinalize(t *testing.T) {
	Convey("Given drafts A, B and C", t, func() {
		s := NewStore()
		for _, u := range []string{"a", "b", "c"} {
			_, err := s.Upsert(Update{PositionCode: "CSC108", Utorid: u, StagedAssigned: ptr(true), HoursAssigned: ptr(54.0)})
			So(err, ShouldBeNil)
		}

		submitted := func(keys ...string) []model.MatchableAssignment {
			out := make([]model.MatchableAssignment, 0, len(keys))
			for _, k := range keys {
				e, ok := s.Get(k)
				So(ok, ShouldBeTrue)
				out = append(out, e)
			}
			return out
		}

		Convey("When A and B are committed", func() {
			res, err := s.Apply(CommitFinalizeCommand{Entries: submitted("CSC108|a", "CSC108|b")})

			Convey("Then only C remains", func() {
				So(err, ShouldBeNil)
				So(res.Removed, ShouldResemble, []string{"CSC108|a", "CSC108|b"})
				So(res.Skipped, ShouldBeEmpty)
				drafts := s.Drafts()
				So(drafts, ShouldHaveLength, 1)
				So(drafts[0].Key(), ShouldEqual, "CSC108|c")
			})
		})

		Convey("When A is edited after it was submitted", func() {
			entries := submitted("CSC108|a", "CSC108|b")
			_, err := s.Upsert(Update{PositionCode: "CSC108", Utorid: "a", HoursAssigned: ptr(90.0)})
			So(err, ShouldBeNil)
			_, err = s.Upsert(Update{PositionCode: "CSC108", Utorid: "b", Starred: ptr(true)})
			So(err, ShouldBeNil)
			res, err := s.Apply(CommitFinalizeCommand{Entries: entries})

			Convey("Then A is kept and reported while B is removed", func() {
				So(err, ShouldBeNil)
				So(res.Removed, ShouldResemble, []string{"CSC108|b"})
				So(res.Skipped, ShouldResemble, []Skipped{{Key: "CSC108|a", Reason: SkipModified}})
				a, ok := s.Get("CSC108|a")
				So(ok, ShouldBeTrue)
				So(a.HoursAssigned, ShouldEqual, 90)
			})
		})

		Convey("When a submitted draft was removed in the meantime", func() {
			entries := submitted("CSC108|a")
			s.Remove("CSC108|a")
			res, err := s.Apply(CommitFinalizeCommand{Entries: entries})

			Convey("Then nothing is removed or reported", func() {
				So(err, ShouldBeNil)
				So(res.Removed, ShouldBeEmpty)
				So(res.Skipped, ShouldBeEmpty)
			})
		})
	})
}

func TestReplay(t *testing.T) {
	Convey("Given a command log", t, func() {
		log := []Command{
			UpsertCommand{Update: Update{PositionCode: "CSC108", Utorid: "a", StagedAssigned: ptr(true), HoursAssigned: ptr(70.0)}},
			ImportCommand{Matches: []model.RawMatch{{Utorid: "b", PositionCode: "CSC148", Starred: true}}},
			RemoveCommand{Keys: []string{"CSC148|b"}},
			UpsertCommand{Update: Update{PositionCode: "CSC108", Utorid: "c", Hidden: ptr(true)}},
		}

		Convey("When replayed into two fresh stores", func() {
			s1, s2 := NewStore(), NewStore()
			_, err1 := Replay(s1, log)
			_, err2 := Replay(s2, log)

			Convey("Then both end in the same state", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(s1.List(), ShouldResemble, s2.List())
				So(s1.Version(), ShouldEqual, s2.Version())
				So(s1.List(), ShouldHaveLength, 2)
			})
		})

		Convey("When a command fails", func() {
			bad := append(append([]Command{}, log[:1]...), UpsertCommand{Update: Update{Utorid: "x"}}, log[3])
			results, err := Replay(NewStore(), bad)

			Convey("Then replay stops at the failure", func() {
				So(errors.Is(err, ErrInvalidKey), ShouldBeTrue)
				So(results, ShouldHaveLength, 1)
			})
		})
	})
}

func TestStore_Shorthands(t *testing.T) {
	Convey("Given a store with one entry", t, func() {
		s := NewStore()
		_, _ = s.Upsert(Update{PositionCode: "CSC108", Utorid: "a"})

		Convey("Then Remove deletes it", func() {
			So(s.Remove("CSC108|a"), ShouldResemble, []string{"CSC108|a"})
			So(s.List(), ShouldBeEmpty)
		})

		Convey("Then MarkSaved clears the updated flag", func() {
			s.MarkSaved()
			So(s.Updated(), ShouldBeFalse)
		})

		Convey("Then guarantees and notes can be set and cleared", func() {
			s.SetGuarantee(model.Guarantee{Utorid: "a", MinHoursOwed: 60, MaxHoursOwed: 120})
			s.SetNote("a", "first year")
			g, ok := s.Guarantee("a")
			So(ok, ShouldBeTrue)
			So(g.MaxHoursOwed, ShouldEqual, 120)
			So(s.Note("a"), ShouldEqual, "first year")

			s.SetNote("a", "")
			So(s.Note("a"), ShouldEqual, "")
		})
	})
}
