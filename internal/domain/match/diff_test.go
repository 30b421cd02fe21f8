package match

import (
	"fmt"
	"testing"

	"github.com/okian/tapp/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleRaw(n int) []model.RawMatch {
	out := make([]model.RawMatch, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.RawMatch{
			Utorid:              fmt.Sprintf("user%02d", i),
			PositionCode:        fmt.Sprintf("CSC%d", 100+i%3),
			Starred:             i%2 == 0,
			Hidden:              i%5 == 0,
			StagedAssigned:      i%3 == 0,
			StagedHoursAssigned: float64(10 * i),
		})
	}
	return out
}

func TestDiff(t *testing.T) {
	Convey("Given a list of raw matches", t, func() {
		list := sampleRaw(12)

		Convey("When diffing the list against itself", func() {
			out := Diff(list, list)

			Convey("Then nothing is reported", func() {
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When the list holds duplicate keys", func() {
			dup := append([]model.RawMatch{}, list...)
			changed := dup[0]
			changed.Hidden = !changed.Hidden
			dup = append(dup, changed)

			Convey("Then a self-diff is still empty", func() {
				So(Diff(dup, dup), ShouldBeEmpty)
			})
		})

		Convey("When exactly one tracked field of one entry changes", func() {
			for field := 0; field < 4; field++ {
				next := append([]model.RawMatch{}, list...)
				e := next[5]
				switch field {
				case 0:
					e.Starred = !e.Starred
				case 1:
					e.Hidden = !e.Hidden
				case 2:
					e.StagedAssigned = !e.StagedAssigned
				case 3:
					e.StagedHoursAssigned += 5
				}
				next[5] = e

				out := Diff(list, next)
				So(out, ShouldHaveLength, 1)
				So(out[0], ShouldResemble, e)
			}
		})

		Convey("When the new list adds an entry", func() {
			added := model.RawMatch{Utorid: "new01", PositionCode: "MAT137", StagedAssigned: true, StagedHoursAssigned: 54}
			next := append(append([]model.RawMatch{}, list...), added)

			Convey("Then only the addition is reported", func() {
				So(Diff(list, next), ShouldResemble, []model.RawMatch{added})
			})
		})

		Convey("When the new list drops entries", func() {
			Convey("Then removals are not reported", func() {
				So(Diff(list, list[:4]), ShouldBeEmpty)
			})
		})

		Convey("When diffing", func() {
			before := append([]model.RawMatch{}, list...)
			next := sampleRaw(15)
			_ = Diff(list, next)

			Convey("Then the inputs are not modified", func() {
				So(list, ShouldResemble, before)
			})
		})

		Convey("When the new list carries records without keys", func() {
			next := []model.RawMatch{{Utorid: "x"}, {PositionCode: "CSC108"}, {}}

			Convey("Then they are skipped", func() {
				So(Diff(list, next), ShouldBeEmpty)
			})
		})
	})

	Convey("Given an empty old list", t, func() {
		next := sampleRaw(3)

		Convey("Then every valid new entry is reported in order", func() {
			So(Diff(nil, next), ShouldResemble, next)
		})
	})
}
