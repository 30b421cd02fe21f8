// Package repository persists finalized assignments and serves the
// applicant and position catalog the match store resolves against.
package repository

import (
	"context"

	"github.com/okian/tapp/internal/domain/model"
)

// AssignmentStore is the server of record for assignments.
type AssignmentStore interface {
	// UpsertAssignments creates or updates one assignment per input and
	// returns the rows it confirmed. Inputs that were not written, such as
	// pairs whose assignment already holds a live offer, are absent from
	// the result; the call does not fail because of them.
	UpsertAssignments(ctx context.Context, inputs []model.AssignmentInput) ([]model.Assignment, error)

	// ListAssignments returns every assignment of the session.
	ListAssignments(ctx context.Context) ([]model.Assignment, error)
}

// Catalog is the read model of applicants, their applications, and
// positions for the session.
type Catalog interface {
	Applicants(ctx context.Context) ([]model.Applicant, error)
	Applications(ctx context.Context) ([]model.Application, error)
	Positions(ctx context.Context) ([]model.Position, error)
}
