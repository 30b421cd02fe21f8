// Package match holds the in-memory draft match store, the diff engine used
// by imports, and the commands that mutate the store.
package match

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/okian/tapp/internal/domain/model"
)

// Update is a partial match. Nil fields are left untouched; a new entry
// takes the zero value for them.
type Update struct {
	PositionCode   string   `json:"positionCode"`
	Utorid         string   `json:"utorid"`
	HoursAssigned  *float64 `json:"hoursAssigned,omitempty"`
	StagedAssigned *bool    `json:"stagedAssigned,omitempty"`
	Starred        *bool    `json:"starred,omitempty"`
	Hidden         *bool    `json:"hidden,omitempty"`
}

// UpdateFromRaw turns a raw record into an update that sets every tracked
// field.
func UpdateFromRaw(r model.RawMatch) Update {
	return Update{
		PositionCode:   r.PositionCode,
		Utorid:         r.Utorid,
		HoursAssigned:  &r.StagedHoursAssigned,
		StagedAssigned: &r.StagedAssigned,
		Starred:        &r.Starred,
		Hidden:         &r.Hidden,
	}
}

func (u Update) validate() error {
	if u.PositionCode == "" || u.Utorid == "" {
		return ErrInvalidKey
	}
	if u.HoursAssigned != nil && !validHours(*u.HoursAssigned) {
		return fmt.Errorf("%w: %v", ErrInvalidHours, *u.HoursAssigned)
	}
	return nil
}

func validHours(h float64) bool {
	return h >= 0 && !math.IsInf(h, 0) && !math.IsNaN(h)
}

// Store is the authoritative in-memory set of matchable assignments, keyed
// by position code and utorid. Reads may run concurrently; mutations go
// through Apply one command at a time.
type Store struct {
	mu sync.RWMutex

	entries map[string]*model.MatchableAssignment
	// order keeps insertion order so listings and exports are deterministic.
	order []string

	guarantees map[string]model.Guarantee
	notes      map[string]string

	updated bool
	version uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:    make(map[string]*model.MatchableAssignment),
		guarantees: make(map[string]model.Guarantee),
		notes:      make(map[string]string),
	}
}

// Apply runs cmd against the store while holding the write lock.
func (s *Store) Apply(cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := cmd.apply(s)
	if err != nil {
		return Result{}, err
	}
	res.Version = s.version
	return res, nil
}

// Upsert is shorthand for Apply(UpsertCommand{Update: u}).
func (s *Store) Upsert(u Update) (model.MatchableAssignment, error) {
	res, err := s.Apply(UpsertCommand{Update: u})
	if err != nil {
		return model.MatchableAssignment{}, err
	}
	return res.Entries[0], nil
}

// Remove is shorthand for Apply(RemoveCommand{Keys: keys}).
func (s *Store) Remove(keys ...string) []string {
	res, _ := s.Apply(RemoveCommand{Keys: keys})
	return res.Removed
}

// MarkSaved clears the updated flag.
func (s *Store) MarkSaved() {
	_, _ = s.Apply(MarkSavedCommand{})
}

// SetGuarantee records the hours guarantee for g.Utorid.
func (s *Store) SetGuarantee(g model.Guarantee) {
	_, _ = s.Apply(ImportCommand{Guarantees: []model.Guarantee{g}})
}

// SetNote records a note for utorid. An empty note clears it.
func (s *Store) SetNote(utorid, note string) {
	_, _ = s.Apply(ImportCommand{Notes: []model.Note{{Utorid: utorid, Note: note}}})
}

// upsert merges u into the entry for its key, creating the entry with
// defaults when missing. Must be called with s.mu held.
func (s *Store) upsert(u Update) (model.MatchableAssignment, error) {
	if err := u.validate(); err != nil {
		return model.MatchableAssignment{}, err
	}

	key := model.Key(u.PositionCode, u.Utorid)
	entry, ok := s.entries[key]
	if !ok {
		entry = &model.MatchableAssignment{
			Utorid:       u.Utorid,
			PositionCode: u.PositionCode,
		}
		s.entries[key] = entry
		s.order = append(s.order, key)
	}

	if u.HoursAssigned != nil {
		entry.HoursAssigned = *u.HoursAssigned
	}
	if u.StagedAssigned != nil {
		entry.StagedAssigned = *u.StagedAssigned
		entry.Draft = *u.StagedAssigned
	}
	if u.Starred != nil {
		entry.Starred = *u.Starred
	}
	if u.Hidden != nil {
		entry.Hidden = *u.Hidden
	}

	s.touch()
	return *entry, nil
}

// remove deletes the given keys and returns the ones that existed. Must be
// called with s.mu held.
func (s *Store) remove(keys []string) []string {
	removed := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := s.entries[key]; !ok {
			continue
		}
		delete(s.entries, key)
		removed = append(removed, key)
	}
	if len(removed) == 0 {
		return removed
	}
	s.order = slices.DeleteFunc(s.order, func(key string) bool {
		_, ok := s.entries[key]
		return !ok
	})
	s.touch()
	return removed
}

func (s *Store) touch() {
	s.updated = true
	s.version++
}

// Get returns a copy of the entry for key.
func (s *Store) Get(key string) (model.MatchableAssignment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return model.MatchableAssignment{}, false
	}
	return *entry, true
}

// List returns copies of all entries in insertion order.
func (s *Store) List() []model.MatchableAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(*model.MatchableAssignment) bool { return true })
}

// Drafts returns the staged entries that have not been finalized.
func (s *Store) Drafts() []model.MatchableAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(m *model.MatchableAssignment) bool { return m.Draft && m.StagedAssigned })
}

// ForApplicant returns every entry held by utorid.
func (s *Store) ForApplicant(utorid string) []model.MatchableAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(m *model.MatchableAssignment) bool { return m.Utorid == utorid })
}

// ForPosition returns every entry for positionCode.
func (s *Store) ForPosition(positionCode string) []model.MatchableAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(m *model.MatchableAssignment) bool { return m.PositionCode == positionCode })
}

func (s *Store) listLocked(keep func(*model.MatchableAssignment) bool) []model.MatchableAssignment {
	out := make([]model.MatchableAssignment, 0, len(s.order))
	for _, key := range s.order {
		if entry := s.entries[key]; keep(entry) {
			out = append(out, *entry)
		}
	}
	return out
}

// Raw returns every entry in its import/export form.
func (s *Store) Raw() []model.RawMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawLocked()
}

func (s *Store) rawLocked() []model.RawMatch {
	out := make([]model.RawMatch, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.entries[key].Raw())
	}
	return out
}

// Guarantee returns the hours guarantee recorded for utorid.
func (s *Store) Guarantee(utorid string) (model.Guarantee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guarantees[utorid]
	return g, ok
}

// Guarantees returns every guarantee sorted by utorid.
func (s *Store) Guarantees() []model.Guarantee {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Guarantee, 0, len(s.guarantees))
	for _, g := range s.guarantees {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b model.Guarantee) int { return cmp.Compare(a.Utorid, b.Utorid) })
	return out
}

// Note returns the note recorded for utorid.
func (s *Store) Note(utorid string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes[utorid]
}

// Notes returns every non-empty note sorted by utorid.
func (s *Store) Notes() []model.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Note, 0, len(s.notes))
	for utorid, note := range s.notes {
		out = append(out, model.Note{Utorid: utorid, Note: note})
	}
	slices.SortFunc(out, func(a, b model.Note) int { return cmp.Compare(a.Utorid, b.Utorid) })
	return out
}

// Updated reports whether the store changed since the last MarkSaved.
func (s *Store) Updated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Version increases with every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of entries and how many of them are drafts.
func (s *Store) Len() (entries, drafts int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.Draft && entry.StagedAssigned {
			drafts++
		}
	}
	return len(s.entries), drafts
}

// IsForbidden reports whether the pair already holds a live offer and so
// cannot be finalized again.
func (s *Store) IsForbidden(positionCode, utorid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IsForbidden(s.entries[model.Key(positionCode, utorid)])
}

// IsForbidden is true iff entry exists, is not deleted, and carries an
// offer status other than none or withdrawn.
func IsForbidden(entry *model.MatchableAssignment) bool {
	if entry == nil || entry.Deleted {
		return false
	}
	return entry.ActiveOfferStatus.Active()
}
