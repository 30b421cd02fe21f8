package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/okian/tapp/internal/domain/filter"
	"github.com/okian/tapp/internal/domain/match"
	"github.com/okian/tapp/internal/domain/model"
	"github.com/okian/tapp/internal/domain/transfer"
	"github.com/okian/tapp/pkg/logger"
	"github.com/okian/tapp/pkg/metrics"
)

// UpsertMatch merges a partial match into the store.
func (s *Service) UpsertMatch(ctx context.Context, u match.Update) (model.MatchableAssignment, error) {
	res, err := s.dispatch(ctx, match.UpsertCommand{Update: u})
	if err != nil {
		return model.MatchableAssignment{}, err
	}
	metrics.RecordMatchUpsert()
	return res.Entries[0], nil
}

// RemoveMatches deletes the given keys and returns the ones that existed.
func (s *Service) RemoveMatches(ctx context.Context, keys []string) ([]string, error) {
	res, err := s.dispatch(ctx, match.RemoveCommand{Keys: keys})
	if err != nil {
		return nil, err
	}
	metrics.RecordMatchRemovals(len(res.Removed))
	return res.Removed, nil
}

// ImportReport summarizes an applied import.
type ImportReport struct {
	ID         string          `json:"id"`
	Applied    int             `json:"applied"`
	Skipped    []match.Skipped `json:"skipped"`
	Guarantees int             `json:"guarantees"`
	Notes      int             `json:"notes"`
	Version    uint64          `json:"version"`
}

// Import parses an import file and merges it into the store. A file that
// does not parse is rejected whole with a *transfer.ParseError. Matches
// that name unknown applicants or positions are skipped and reported.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	if _, _, _, err := s.components(); err != nil {
		return ImportReport{}, err
	}
	report := ImportReport{ID: uuid.NewString()}
	log := s.logger.Named("import")

	payload, err := transfer.Decode(r, s.maxImportBytes)
	if err != nil {
		metrics.RecordImport("parse_error")
		log.Warn(ctx, "import rejected", logger.String("import", report.ID), logger.Error(err))
		return report, err
	}
	if payload.Empty() {
		metrics.RecordImport("empty")
		return report, nil
	}

	resolver, err := s.resolver(ctx)
	if err != nil {
		return report, err
	}
	res, err := s.dispatch(ctx, match.ImportCommand{
		Matches:    payload.Matches,
		Guarantees: payload.Guarantees,
		Notes:      payload.Notes,
		Resolver:   resolver,
	})
	if err != nil {
		return report, err
	}

	report.Applied = len(res.Applied)
	report.Skipped = res.Skipped
	report.Guarantees = res.Guarantees
	report.Notes = res.Notes
	report.Version = res.Version

	metrics.RecordImport("applied")
	metrics.RecordImportedMatches(report.Applied)
	metrics.RecordImportSkipped(len(report.Skipped))
	for _, sk := range report.Skipped {
		log.Warn(ctx, "import record skipped",
			logger.String("import", report.ID),
			logger.String("key", sk.Key),
			logger.String("reason", sk.Reason),
		)
	}
	log.Info(ctx, "import applied",
		logger.String("import", report.ID),
		logger.Int("received", len(payload.Matches)),
		logger.Int("applied", report.Applied),
		logger.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// Export writes the store, or only the matches named by keys, as an
// indented JSON file. A full export clears the updated flag unless the
// store changed after the exported snapshot was taken.
func (s *Service) Export(ctx context.Context, w io.Writer, keys []string) error {
	st, _, _, err := s.components()
	if err != nil {
		return err
	}

	snap := st.Snapshot()
	payload := transfer.Payload{
		Matches:    snap.Raw(),
		Guarantees: snap.Guarantees(),
		Notes:      snap.Notes(),
	}.Select(keys)
	if err := transfer.Encode(w, payload); err != nil {
		return err
	}
	metrics.RecordExport()

	if len(keys) == 0 && snap.Version() > 0 {
		if _, err := s.dispatch(ctx, match.MarkSavedCommand{Version: snap.Version()}); err != nil {
			return fmt.Errorf("mark saved: %w", err)
		}
	}
	return nil
}

// ApplicantQuery selects and orders the applicants shown for a position.
type ApplicantQuery struct {
	Search  string
	Filters []filter.Filter
	Sorts   []filter.Sort
}

// ApplicantsForPosition returns the filtered, sorted summaries for
// positionCode.
func (s *Service) ApplicantsForPosition(ctx context.Context, positionCode string, q ApplicantQuery) ([]model.ApplicantSummary, error) {
	st, _, _, err := s.components()
	if err != nil {
		return nil, err
	}

	positions, err := s.catalog.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	known := false
	for _, p := range positions {
		if p.PositionCode == positionCode {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, positionCode)
	}

	applicants, err := s.catalog.Applicants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load applicants: %w", err)
	}
	applications, err := s.catalog.Applications(ctx)
	if err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}

	summaries := filter.Summaries(positionCode, applicants, applications, st.Snapshot())
	return filter.Apply(summaries, q.Search, q.Filters, q.Sorts), nil
}

// Forbidden reports, per key, whether finalizing it is blocked by an
// existing assignment with a live offer. Malformed keys are reported as
// not forbidden.
func (s *Service) Forbidden(_ context.Context, keys []string) (map[string]bool, error) {
	st, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(keys))
	for _, key := range keys {
		code, utorid, ok := model.SplitKey(key)
		out[key] = ok && st.IsForbidden(code, utorid)
	}
	return out, nil
}

// catalogResolver answers import lookups from one catalog snapshot.
type catalogResolver struct {
	applicants map[string]struct{}
	positions  map[string]struct{}
}

func (r catalogResolver) HasApplicant(utorid string) bool {
	_, ok := r.applicants[utorid]
	return ok
}

func (r catalogResolver) HasPosition(positionCode string) bool {
	_, ok := r.positions[positionCode]
	return ok
}

func (s *Service) resolver(ctx context.Context) (catalogResolver, error) {
	applicants, errA := s.catalog.Applicants(ctx)
	positions, errP := s.catalog.Positions(ctx)
	if err := errors.Join(errA, errP); err != nil {
		return catalogResolver{}, fmt.Errorf("load catalog: %w", err)
	}

	r := catalogResolver{
		applicants: make(map[string]struct{}, len(applicants)),
		positions:  make(map[string]struct{}, len(positions)),
	}
	for _, a := range applicants {
		r.applicants[a.Utorid] = struct{}{}
	}
	for _, p := range positions {
		r.positions[p.PositionCode] = struct{}{}
	}
	return r, nil
}
