package match

import (
	"fmt"

	"github.com/okian/tapp/internal/domain/model"
)

// Command is one discrete mutation of the store. Commands are applied
// through Store.Apply so that each runs atomically, and a slice of them can
// be replayed to rebuild a store deterministically.
type Command interface {
	// Name identifies the command in logs and metrics.
	Name() string
	apply(s *Store) (Result, error)
}

// Result describes what a command changed.
type Result struct {
	// Entries holds the entries written by the command.
	Entries []model.MatchableAssignment `json:"entries,omitempty"`
	// Removed holds the keys deleted by the command.
	Removed []string `json:"removed,omitempty"`
	// Applied holds the imported records that survived diffing.
	Applied []model.RawMatch `json:"applied,omitempty"`
	// Skipped holds imported records that were not applied.
	Skipped []Skipped `json:"skipped,omitempty"`

	Guarantees int    `json:"guarantees,omitempty"`
	Notes      int    `json:"notes,omitempty"`
	Version    uint64 `json:"version"`
}

// Skipped names an imported record that could not be applied.
type Skipped struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Resolver answers whether imported references exist in the catalog.
type Resolver interface {
	HasApplicant(utorid string) bool
	HasPosition(positionCode string) bool
}

// UpsertCommand merges a partial match into the store.
type UpsertCommand struct {
	Update Update
}

// Name implements Command.
func (UpsertCommand) Name() string { return "upsert" }

func (c UpsertCommand) apply(s *Store) (Result, error) {
	entry, err := s.upsert(c.Update)
	if err != nil {
		return Result{}, err
	}
	return Result{Entries: []model.MatchableAssignment{entry}}, nil
}

// RemoveCommand deletes matches by key. Unknown keys are ignored.
type RemoveCommand struct {
	Keys []string
}

// Name implements Command.
func (RemoveCommand) Name() string { return "remove" }

func (c RemoveCommand) apply(s *Store) (Result, error) {
	return Result{Removed: s.remove(c.Keys)}, nil
}

// ImportCommand merges an imported file into the store. The diff is taken
// against the store as it is when the command runs, so an import never
// applies a diff computed against an older snapshot.
type ImportCommand struct {
	Matches    []model.RawMatch
	Guarantees []model.Guarantee
	Notes      []model.Note
	// Resolver filters out references to unknown applicants or positions.
	// A nil Resolver accepts everything.
	Resolver Resolver
}

// Name implements Command.
func (ImportCommand) Name() string { return "import" }

func (c ImportCommand) apply(s *Store) (Result, error) {
	var res Result

	known := make([]model.RawMatch, 0, len(c.Matches))
	for _, r := range c.Matches {
		if reason := c.reject(r); reason != "" {
			res.Skipped = append(res.Skipped, Skipped{Key: r.Key(), Reason: reason})
			continue
		}
		known = append(known, r)
	}

	res.Applied = Diff(s.rawLocked(), known)
	for _, r := range res.Applied {
		entry, err := s.upsert(UpdateFromRaw(r))
		if err != nil {
			// reject already validated every field upsert checks.
			return Result{}, fmt.Errorf("import %s: %w", r.Key(), err)
		}
		res.Entries = append(res.Entries, entry)
	}

	for _, g := range c.Guarantees {
		if g.Utorid == "" {
			continue
		}
		if c.Resolver != nil && !c.Resolver.HasApplicant(g.Utorid) {
			res.Skipped = append(res.Skipped, Skipped{Key: g.Utorid, Reason: "unknown applicant"})
			continue
		}
		s.guarantees[g.Utorid] = g
		res.Guarantees++
	}
	for _, n := range c.Notes {
		if n.Utorid == "" {
			continue
		}
		if c.Resolver != nil && !c.Resolver.HasApplicant(n.Utorid) {
			res.Skipped = append(res.Skipped, Skipped{Key: n.Utorid, Reason: "unknown applicant"})
			continue
		}
		if n.Note == "" {
			delete(s.notes, n.Utorid)
		} else {
			s.notes[n.Utorid] = n.Note
		}
		res.Notes++
	}
	if res.Guarantees > 0 || res.Notes > 0 {
		s.touch()
	}
	return res, nil
}

func (c ImportCommand) reject(r model.RawMatch) string {
	switch {
	case !r.Valid():
		return "missing utorid or positionCode"
	case !validHours(r.StagedHoursAssigned):
		return "invalid stagedHoursAssigned"
	case c.Resolver != nil && !c.Resolver.HasApplicant(r.Utorid):
		return "unknown applicant"
	case c.Resolver != nil && !c.Resolver.HasPosition(r.PositionCode):
		return "unknown position"
	}
	return ""
}

// SyncAssignmentsCommand mirrors the persisted assignments into the store.
// Each assignment is recorded on the entry for its key; entries that
// mirrored an assignment missing from the list are marked deleted.
type SyncAssignmentsCommand struct {
	Assignments []model.Assignment
}

// Name implements Command.
func (SyncAssignmentsCommand) Name() string { return "sync_assignments" }

func (c SyncAssignmentsCommand) apply(s *Store) (Result, error) {
	var res Result
	seen := make(map[string]struct{}, len(c.Assignments))

	for _, a := range c.Assignments {
		if a.PositionCode == "" || a.Utorid == "" {
			continue
		}
		key := a.Key()
		seen[key] = struct{}{}

		entry, ok := s.entries[key]
		if !ok {
			entry = &model.MatchableAssignment{Utorid: a.Utorid, PositionCode: a.PositionCode}
			s.entries[key] = entry
			s.order = append(s.order, key)
		}
		entry.AssignmentID = a.ID
		entry.ActiveOfferStatus = a.ActiveOfferStatus
		entry.Deleted = false
		if !entry.Draft {
			entry.HoursAssigned = a.Hours
		}
		res.Entries = append(res.Entries, *entry)
	}

	for _, key := range s.order {
		entry := s.entries[key]
		if entry.AssignmentID == 0 || entry.Deleted {
			continue
		}
		if _, ok := seen[key]; !ok {
			entry.Deleted = true
			res.Entries = append(res.Entries, *entry)
		}
	}

	if len(res.Entries) > 0 {
		s.touch()
	}
	return res, nil
}

// CommitFinalizeCommand drops the drafts whose assignments were confirmed
// by the persistence layer. Entries holds each draft as it was submitted;
// a draft edited since then is kept and reported in Result.Skipped.
type CommitFinalizeCommand struct {
	Entries []model.MatchableAssignment
}

// SkipModified is the Skipped reason for a draft edited during finalize.
const SkipModified = "modified since it was submitted"

// Name implements Command.
func (CommitFinalizeCommand) Name() string { return "commit_finalize" }

func (c CommitFinalizeCommand) apply(s *Store) (Result, error) {
	var res Result
	keys := make([]string, 0, len(c.Entries))
	for _, submitted := range c.Entries {
		key := submitted.Key()
		current, ok := s.entries[key]
		if !ok {
			continue
		}
		if !sameSubmission(*current, submitted) {
			res.Skipped = append(res.Skipped, Skipped{Key: key, Reason: SkipModified})
			continue
		}
		keys = append(keys, key)
	}
	res.Removed = s.remove(keys)
	return res, nil
}

// sameSubmission reports whether a would produce the same assignment as b.
func sameSubmission(a, b model.MatchableAssignment) bool {
	return a.Draft == b.Draft &&
		a.StagedAssigned == b.StagedAssigned &&
		a.HoursAssigned == b.HoursAssigned
}

// MarkSavedCommand clears the updated flag after an export. A non-zero
// Version makes the clear conditional: it only happens while the store is
// still at that version, so a change made after the exported snapshot
// stays unsaved.
type MarkSavedCommand struct {
	Version uint64
}

// Name implements Command.
func (MarkSavedCommand) Name() string { return "mark_saved" }

func (c MarkSavedCommand) apply(s *Store) (Result, error) {
	if c.Version == 0 || c.Version == s.version {
		s.updated = false
	}
	return Result{}, nil
}

// Replay applies cmds in order and stops at the first failure, returning
// the results gathered so far.
func Replay(s *Store, cmds []Command) ([]Result, error) {
	results := make([]Result, 0, len(cmds))
	for i, cmd := range cmds {
		res, err := s.Apply(cmd)
		if err != nil {
			return results, fmt.Errorf("replay command %d (%s): %w", i, cmd.Name(), err)
		}
		results = append(results, res)
	}
	return results, nil
}
