package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tapp/internal/domain/inflight"
	"github.com/okian/tapp/internal/domain/match"
	"github.com/okian/tapp/internal/domain/model"
	"github.com/okian/tapp/pkg/logger"
	"github.com/okian/tapp/pkg/metrics"
)

// FinalizeReport describes one finalize batch.
type FinalizeReport struct {
	ID        string             `json:"id"`
	Finalized []model.Assignment `json:"finalized"`
	Removed   []string           `json:"removed"`
	Conflicts []ConflictItem     `json:"conflicts,omitempty"`
}

// Finalize submits the selected drafts as one batch to the assignment
// store and removes the drafts it confirmed.
//
// Nothing is submitted when a key is not a draft, is forbidden, cannot be
// resolved in the catalog, or is already part of another batch. When the
// store fails without confirming anything a *NetworkError is returned and
// the drafts stay. When it confirms only part of the batch the confirmed
// drafts are removed and the rest come back in a *ConflictError. A draft
// edited while the batch was pending is kept and reported as a conflict.
func (s *Service) Finalize(ctx context.Context, keys []string) (FinalizeReport, error) {
	report := FinalizeReport{ID: uuid.NewString()}
	st, _, _, err := s.components()
	if err != nil {
		return report, err
	}
	log := s.logger.Named("finalize")
	start := time.Now()
	defer func() { metrics.RecordFinalizeLatency(float64(time.Since(start).Milliseconds())) }()

	keys = uniqueKeys(keys)
	if len(keys) == 0 {
		return report, ErrEmptySelection
	}

	entries := make([]model.MatchableAssignment, 0, len(keys))
	var forbidden []ConflictItem
	for _, key := range keys {
		entry, ok := st.Get(key)
		if !ok {
			return report, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		if !entry.Draft {
			return report, fmt.Errorf("%w: %s", ErrNotDraft, key)
		}
		if st.IsForbidden(entry.PositionCode, entry.Utorid) {
			forbidden = append(forbidden, ConflictItem{Key: key, Reason: ReasonActiveOffer})
		}
		entries = append(entries, entry)
	}
	if len(forbidden) > 0 {
		metrics.RecordForbiddenRejections(len(forbidden))
		metrics.RecordFinalizeBatch("rejected")
		return report, &ConflictError{Items: forbidden}
	}

	inputs, unresolved, err := s.resolveInputs(ctx, entries)
	if err != nil {
		return report, err
	}
	if len(unresolved) > 0 {
		metrics.RecordFinalizeBatch("rejected")
		return report, &ConflictError{Items: unresolved}
	}

	busy, err := s.inflight.Claim(ctx, keys...)
	if errors.Is(err, inflight.ErrFull) {
		return report, ErrBackpressure
	}
	if err != nil {
		return report, err
	}
	if len(busy) > 0 {
		return report, fmt.Errorf("%w: %s", ErrInFlight, strings.Join(busy, ", "))
	}
	defer s.inflight.Release(context.WithoutCancel(ctx), keys...)

	log.Info(ctx, "submitting finalize batch",
		logger.String("batch", report.ID),
		logger.Int("size", len(inputs)),
	)

	submitCtx, cancel := context.WithTimeout(ctx, s.finalizeTimeout)
	confirmed, submitErr := s.assignments.UpsertAssignments(submitCtx, inputs)
	cancel()

	submitted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		submitted[k] = struct{}{}
	}
	confirmedKeys := make(map[string]struct{}, len(confirmed))
	for _, a := range confirmed {
		if _, ok := submitted[a.Key()]; ok {
			confirmedKeys[a.Key()] = struct{}{}
			report.Finalized = append(report.Finalized, a)
		}
	}

	if len(confirmedKeys) == 0 && submitErr != nil {
		metrics.RecordFinalizeBatch("network_error")
		log.Error(ctx, "finalize batch failed",
			logger.String("batch", report.ID),
			logger.Error(submitErr),
		)
		return report, &NetworkError{Err: submitErr}
	}

	commit := make([]model.MatchableAssignment, 0, len(confirmedKeys))
	for _, e := range entries {
		if _, ok := confirmedKeys[e.Key()]; ok {
			commit = append(commit, e)
		} else {
			report.Conflicts = append(report.Conflicts, ConflictItem{Key: e.Key(), Reason: ReasonNotConfirmed})
		}
	}

	if len(commit) > 0 {
		res, err := s.dispatch(context.WithoutCancel(ctx), match.CommitFinalizeCommand{Entries: commit})
		if err != nil {
			return report, fmt.Errorf("commit finalized drafts: %w", err)
		}
		report.Removed = res.Removed
		for _, sk := range res.Skipped {
			report.Conflicts = append(report.Conflicts, ConflictItem{Key: sk.Key, Reason: ReasonModified})
		}
	}
	metrics.RecordFinalized(len(report.Removed))

	if len(report.Conflicts) > 0 {
		metrics.RecordFinalizeBatch("partial")
		metrics.RecordFinalizeConflicts(len(report.Conflicts))
		log.Warn(ctx, "finalize batch partially confirmed",
			logger.String("batch", report.ID),
			logger.Int("confirmed", len(report.Removed)),
			logger.Strings("conflicts", (&ConflictError{Items: report.Conflicts}).Keys()),
		)
		return report, &ConflictError{Items: report.Conflicts}
	}

	metrics.RecordFinalizeBatch("ok")
	log.Info(ctx, "finalize batch confirmed",
		logger.String("batch", report.ID),
		logger.Int("confirmed", len(report.Removed)),
	)
	return report, nil
}

// resolveInputs maps drafts to catalog IDs. Drafts whose applicant or
// position is unknown are returned as conflicts.
func (s *Service) resolveInputs(ctx context.Context, entries []model.MatchableAssignment) ([]model.AssignmentInput, []ConflictItem, error) {
	applicants, err := s.catalog.Applicants(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load applicants: %w", err)
	}
	positions, err := s.catalog.Positions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load positions: %w", err)
	}

	applicantIDs := make(map[string]int64, len(applicants))
	for _, a := range applicants {
		applicantIDs[a.Utorid] = a.ID
	}
	positionIDs := make(map[string]int64, len(positions))
	for _, p := range positions {
		positionIDs[p.PositionCode] = p.ID
	}

	inputs := make([]model.AssignmentInput, 0, len(entries))
	var unresolved []ConflictItem
	for _, e := range entries {
		posID, ok := positionIDs[e.PositionCode]
		if !ok {
			unresolved = append(unresolved, ConflictItem{Key: e.Key(), Reason: ReasonUnknownPosition})
			continue
		}
		appID, ok := applicantIDs[e.Utorid]
		if !ok {
			unresolved = append(unresolved, ConflictItem{Key: e.Key(), Reason: ReasonUnknownApplicant})
			continue
		}
		inputs = append(inputs, model.AssignmentInput{PositionID: posID, ApplicantID: appID, Hours: e.HoursAssigned})
	}
	return inputs, unresolved, nil
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
