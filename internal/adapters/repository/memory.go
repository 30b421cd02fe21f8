package repository

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/tapp/internal/domain/model"
	"github.com/okian/tapp/pkg/metrics"
)

const backendMemory = "memory"

// Seed is the YAML document a MemoryStore starts from.
type Seed struct {
	Applicants   []model.Applicant   `yaml:"applicants"`
	Applications []model.Application `yaml:"applications"`
	Positions    []model.Position    `yaml:"positions"`
	Assignments  []model.Assignment  `yaml:"assignments"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return seed, nil
}

type pair struct {
	positionID  int64
	applicantID int64
}

// MemoryStore implements AssignmentStore and Catalog in process memory.
type MemoryStore struct {
	mu sync.RWMutex

	seed Seed

	applicants   []model.Applicant
	applicantIDs map[int64]model.Applicant
	applications []model.Application
	positions    []model.Position
	positionIDs  map[int64]model.Position

	assignments map[pair]*model.Assignment
	order       []pair
	nextID      int64

	minLatency time.Duration
	maxLatency time.Duration
}

// NewMemoryStore builds a store from the configured seed. Records without
// an ID get one; duplicate utorids or position codes are rejected.
func NewMemoryStore(opts ...Option) (*MemoryStore, error) {
	s := &MemoryStore{
		applicantIDs: make(map[int64]model.Applicant),
		positionIDs:  make(map[int64]model.Position),
		assignments:  make(map[pair]*model.Assignment),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(s.seed); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) load(seed Seed) error {
	utorids := make(map[string]int64, len(seed.Applicants))
	for i, a := range seed.Applicants {
		if a.Utorid == "" {
			return fmt.Errorf("%w: applicant %d has no utorid", ErrInvalidSeed, i)
		}
		if _, dup := utorids[a.Utorid]; dup {
			return fmt.Errorf("%w: duplicate utorid %q", ErrInvalidSeed, a.Utorid)
		}
		if a.ID == 0 {
			a.ID = int64(i + 1)
		}
		utorids[a.Utorid] = a.ID
		s.applicants = append(s.applicants, a)
		s.applicantIDs[a.ID] = a
	}

	codes := make(map[string]int64, len(seed.Positions))
	for i, p := range seed.Positions {
		if p.PositionCode == "" {
			return fmt.Errorf("%w: position %d has no code", ErrInvalidSeed, i)
		}
		if _, dup := codes[p.PositionCode]; dup {
			return fmt.Errorf("%w: duplicate position code %q", ErrInvalidSeed, p.PositionCode)
		}
		if p.ID == 0 {
			p.ID = int64(i + 1)
		}
		codes[p.PositionCode] = p.ID
		s.positions = append(s.positions, p)
		s.positionIDs[p.ID] = p
	}

	for _, app := range seed.Applications {
		if _, ok := utorids[app.Utorid]; !ok {
			return fmt.Errorf("%w: application for unknown applicant %q", ErrInvalidSeed, app.Utorid)
		}
		s.applications = append(s.applications, app)
	}

	for _, a := range seed.Assignments {
		posID, ok := codes[a.PositionCode]
		if !ok {
			return fmt.Errorf("%w: assignment for unknown position %q", ErrInvalidSeed, a.PositionCode)
		}
		appID, ok := utorids[a.Utorid]
		if !ok {
			return fmt.Errorf("%w: assignment for unknown applicant %q", ErrInvalidSeed, a.Utorid)
		}
		a.PositionID, a.ApplicantID = posID, appID
		s.nextID = max(s.nextID, a.ID)
		if a.ID == 0 {
			s.nextID++
			a.ID = s.nextID
		}
		s.put(a)
	}
	return nil
}

func (s *MemoryStore) put(a model.Assignment) {
	k := pair{positionID: a.PositionID, applicantID: a.ApplicantID}
	if _, ok := s.assignments[k]; !ok {
		s.order = append(s.order, k)
	}
	s.assignments[k] = &a
}

func (s *MemoryStore) wait(ctx context.Context) error {
	if s.maxLatency <= 0 {
		return ctx.Err()
	}
	d := s.minLatency + rand.N(s.maxLatency-s.minLatency)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func observe(op string, start time.Time, err error) {
	metrics.RecordPersistenceLatency(backendMemory, op, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordPersistenceError(backendMemory, op)
	}
}

// UpsertAssignments implements AssignmentStore. Inputs naming an unknown
// position or applicant, carrying negative hours, or hitting an assignment
// with a live offer are left out of the result.
func (s *MemoryStore) UpsertAssignments(ctx context.Context, inputs []model.AssignmentInput) (out []model.Assignment, err error) {
	defer func(start time.Time) { observe("upsert_assignments", start, err) }(time.Now())

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out = make([]model.Assignment, 0, len(inputs))
	for _, in := range inputs {
		pos, ok := s.positionIDs[in.PositionID]
		if !ok {
			continue
		}
		app, ok := s.applicantIDs[in.ApplicantID]
		if !ok || in.Hours < 0 {
			continue
		}

		k := pair{positionID: in.PositionID, applicantID: in.ApplicantID}
		if existing, ok := s.assignments[k]; ok {
			if existing.ActiveOfferStatus.Active() {
				continue
			}
			existing.Hours = in.Hours
			out = append(out, *existing)
			continue
		}

		s.nextID++
		start, end := pos.StartDate, pos.EndDate
		a := model.Assignment{
			ID:           s.nextID,
			PositionID:   pos.ID,
			ApplicantID:  app.ID,
			PositionCode: pos.PositionCode,
			Utorid:       app.Utorid,
			Hours:        in.Hours,
			StartDate:    &start,
			EndDate:      &end,
		}
		s.put(a)
		out = append(out, a)
	}
	return out, nil
}

// ListAssignments implements AssignmentStore.
func (s *MemoryStore) ListAssignments(ctx context.Context) (out []model.Assignment, err error) {
	defer func(start time.Time) { observe("list_assignments", start, err) }(time.Now())

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out = make([]model.Assignment, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.assignments[k])
	}
	return out, nil
}

// SetOfferStatus records the offer state of an existing assignment.
func (s *MemoryStore) SetOfferStatus(_ context.Context, positionCode, utorid string, status model.OfferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.order {
		a := s.assignments[k]
		if a.PositionCode == positionCode && a.Utorid == utorid {
			a.ActiveOfferStatus = status
			return nil
		}
	}
	return ErrNotFound
}

// Applicants implements Catalog, ordered by last name, first name, utorid.
func (s *MemoryStore) Applicants(ctx context.Context) ([]model.Applicant, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := slices.Clone(s.applicants)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.Applicant) int {
		return cmp.Or(
			cmp.Compare(a.LastName, b.LastName),
			cmp.Compare(a.FirstName, b.FirstName),
			cmp.Compare(a.Utorid, b.Utorid),
		)
	})
	return out, nil
}

// Applications implements Catalog.
func (s *MemoryStore) Applications(ctx context.Context) ([]model.Application, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.applications), nil
}

// Positions implements Catalog, ordered by position code.
func (s *MemoryStore) Positions(ctx context.Context) ([]model.Position, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := slices.Clone(s.positions)
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Position) int { return cmp.Compare(a.PositionCode, b.PositionCode) })
	return out, nil
}
