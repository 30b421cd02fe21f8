package match

import "github.com/okian/tapp/internal/domain/model"

// Diff returns the entries of newList that are missing from oldList or
// differ from every oldList entry with the same key in one of the tracked
// fields: starred, hidden, stagedAssigned, stagedHoursAssigned. Other
// fields are ignored. Records without a utorid or position code are
// skipped. Neither input is modified and newList order is preserved.
func Diff(oldList, newList []model.RawMatch) []model.RawMatch {
	index := make(map[string][]model.RawMatch, len(oldList))
	for _, r := range oldList {
		if !r.Valid() {
			continue
		}
		index[r.Key()] = append(index[r.Key()], r)
	}

	out := make([]model.RawMatch, 0)
	for _, r := range newList {
		if !r.Valid() {
			continue
		}
		if !containsTracked(index[r.Key()], r) {
			out = append(out, r)
		}
	}
	return out
}

func containsTracked(candidates []model.RawMatch, r model.RawMatch) bool {
	for _, c := range candidates {
		if sameTracked(c, r) {
			return true
		}
	}
	return false
}

func sameTracked(a, b model.RawMatch) bool {
	return a.Starred == b.Starred &&
		a.Hidden == b.Hidden &&
		a.StagedAssigned == b.StagedAssigned &&
		a.StagedHoursAssigned == b.StagedHoursAssigned
}
