package match

import (
	"cmp"
	"maps"
	"slices"

	"github.com/okian/tapp/internal/domain/model"
)

// Snapshot is a consistent copy of the store taken under one lock. It is
// safe to read after the store has moved on.
type Snapshot struct {
	entries    []model.MatchableAssignment
	guarantees map[string]model.Guarantee
	notes      map[string]string
	version    uint64
}

// Snapshot copies the entries, guarantees and notes under a single read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		entries:    s.listLocked(func(*model.MatchableAssignment) bool { return true }),
		guarantees: maps.Clone(s.guarantees),
		notes:      maps.Clone(s.notes),
		version:    s.version,
	}
}

// Version is the store version the snapshot was taken at.
func (v Snapshot) Version() uint64 { return v.version }

// List returns the entries in insertion order.
func (v Snapshot) List() []model.MatchableAssignment {
	return slices.Clone(v.entries)
}

// ForApplicant returns every entry held by utorid.
func (v Snapshot) ForApplicant(utorid string) []model.MatchableAssignment {
	return v.filter(func(m model.MatchableAssignment) bool { return m.Utorid == utorid })
}

// ForPosition returns every entry for positionCode.
func (v Snapshot) ForPosition(positionCode string) []model.MatchableAssignment {
	return v.filter(func(m model.MatchableAssignment) bool { return m.PositionCode == positionCode })
}

func (v Snapshot) filter(keep func(model.MatchableAssignment) bool) []model.MatchableAssignment {
	out := make([]model.MatchableAssignment, 0)
	for _, m := range v.entries {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// Raw returns every entry in its import/export form.
func (v Snapshot) Raw() []model.RawMatch {
	out := make([]model.RawMatch, 0, len(v.entries))
	for _, m := range v.entries {
		out = append(out, m.Raw())
	}
	return out
}

// Guarantee returns the hours guarantee recorded for utorid.
func (v Snapshot) Guarantee(utorid string) (model.Guarantee, bool) {
	g, ok := v.guarantees[utorid]
	return g, ok
}

// Guarantees returns every guarantee sorted by utorid.
func (v Snapshot) Guarantees() []model.Guarantee {
	out := make([]model.Guarantee, 0, len(v.guarantees))
	for _, g := range v.guarantees {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b model.Guarantee) int { return cmp.Compare(a.Utorid, b.Utorid) })
	return out
}

// Note returns the note recorded for utorid.
func (v Snapshot) Note(utorid string) string {
	return v.notes[utorid]
}

// Notes returns every non-empty note sorted by utorid.
func (v Snapshot) Notes() []model.Note {
	out := make([]model.Note, 0, len(v.notes))
	for utorid, note := range v.notes {
		out = append(out, model.Note{Utorid: utorid, Note: note})
	}
	slices.SortFunc(out, func(a, b model.Note) int { return cmp.Compare(a.Utorid, b.Utorid) })
	return out
}
