package repository

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/tapp/internal/domain/model"
	"github.com/okian/tapp/pkg/metrics"
)

const backendPostgres = "postgres"

// Querier is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PoolConfig sizes the connection pool opened by NewPool.
type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// NewPool opens and pings a pgx pool.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgxCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PostgresStore implements AssignmentStore and Catalog over an existing
// TAPP schema.
type PostgresStore struct {
	db        Querier
	sessionID int64
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db Querier, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, sessionID: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func track(op string, start time.Time, err error) {
	metrics.RecordPersistenceLatency(backendPostgres, op, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordPersistenceError(backendPostgres, op)
	}
}

const upsertAssignmentsSQL = `
	WITH input AS (
		SELECT * FROM unnest($1::bigint[], $2::bigint[], $3::float8[]) AS t(position_id, applicant_id, hours)
	), upserted AS (
		INSERT INTO assignments (position_id, applicant_id, hours, start_date, end_date)
		SELECT i.position_id, i.applicant_id, i.hours, p.start_date, p.end_date
		FROM input i
		JOIN positions p ON p.id = i.position_id AND p.session_id = $4
		JOIN applicants a ON a.id = i.applicant_id
		WHERE i.hours >= 0
		ON CONFLICT (position_id, applicant_id) DO UPDATE SET hours = EXCLUDED.hours
		WHERE NOT EXISTS (
			SELECT 1 FROM offers o
			WHERE o.id = assignments.active_offer_id AND o.status <> 'withdrawn'
		)
		RETURNING id, position_id, applicant_id, hours, start_date, end_date, active_offer_id
	)
	SELECT u.id, u.position_id, u.applicant_id, p.position_code, a.utorid, u.hours,
	       u.start_date, u.end_date, COALESCE(o.status, '') AS active_offer_status
	FROM upserted u
	JOIN positions p ON p.id = u.position_id
	JOIN applicants a ON a.id = u.applicant_id
	LEFT JOIN offers o ON o.id = u.active_offer_id
	ORDER BY u.id
`

// UpsertAssignments implements AssignmentStore in one statement. Rows
// blocked by a live offer or naming unknown records are not returned.
func (s *PostgresStore) UpsertAssignments(ctx context.Context, inputs []model.AssignmentInput) (out []model.Assignment, err error) {
	defer func(start time.Time) { track("upsert_assignments", start, err) }(time.Now())

	if len(inputs) == 0 {
		return []model.Assignment{}, nil
	}

	positionIDs := make([]int64, len(inputs))
	applicantIDs := make([]int64, len(inputs))
	hours := make([]float64, len(inputs))
	for i, in := range inputs {
		positionIDs[i], applicantIDs[i], hours[i] = in.PositionID, in.ApplicantID, in.Hours
	}

	out = make([]model.Assignment, 0, len(inputs))
	if err = pgxscan.Select(ctx, s.db, &out, upsertAssignmentsSQL, positionIDs, applicantIDs, hours, s.sessionID); err != nil {
		return nil, handleError(err)
	}
	return out, nil
}

const listAssignmentsSQL = `
	SELECT asg.id, asg.position_id, asg.applicant_id, p.position_code, a.utorid, asg.hours,
	       asg.start_date, asg.end_date, COALESCE(o.status, '') AS active_offer_status
	FROM assignments asg
	JOIN positions p ON p.id = asg.position_id
	JOIN applicants a ON a.id = asg.applicant_id
	LEFT JOIN offers o ON o.id = asg.active_offer_id
	WHERE p.session_id = $1
	ORDER BY asg.id
`

// ListAssignments implements AssignmentStore.
func (s *PostgresStore) ListAssignments(ctx context.Context) (out []model.Assignment, err error) {
	defer func(start time.Time) { track("list_assignments", start, err) }(time.Now())

	if err = pgxscan.Select(ctx, s.db, &out, listAssignmentsSQL, s.sessionID); err != nil {
		return nil, handleError(err)
	}
	return out, nil
}

const applicantsSQL = `
	SELECT a.id, a.utorid, a.first_name, a.last_name,
	       COALESCE(a.email, '') AS email,
	       COALESCE(a.student_number, '') AS student_number,
	       COALESCE(a.phone, '') AS phone
	FROM applicants a
	ORDER BY a.last_name, a.first_name, a.utorid
`

// Applicants implements Catalog.
func (s *PostgresStore) Applicants(ctx context.Context) (out []model.Applicant, err error) {
	defer func(start time.Time) { track("applicants", start, err) }(time.Now())

	if err = pgxscan.Select(ctx, s.db, &out, applicantsSQL); err != nil {
		return nil, handleError(err)
	}
	return out, nil
}

const applicationsSQL = `
	SELECT a.utorid,
	       COALESCE(app.program, '') AS program,
	       COALESCE(app.department, '') AS department,
	       COALESCE(app.year_in_program, 0) AS year_in_program,
	       COALESCE(app.gpa, 0) AS gpa
	FROM applications app
	JOIN applicants a ON a.id = app.applicant_id
	WHERE app.session_id = $1
	ORDER BY a.utorid
`

const preferencesSQL = `
	SELECT a.utorid, p.position_code, pp.preference_level
	FROM position_preferences pp
	JOIN applications app ON app.id = pp.application_id
	JOIN applicants a ON a.id = app.applicant_id
	JOIN positions p ON p.id = pp.position_id
	WHERE app.session_id = $1
`

type preferenceRow struct {
	Utorid          string `db:"utorid"`
	PositionCode    string `db:"position_code"`
	PreferenceLevel int    `db:"preference_level"`
}

// Applications implements Catalog.
func (s *PostgresStore) Applications(ctx context.Context) (out []model.Application, err error) {
	defer func(start time.Time) { track("applications", start, err) }(time.Now())

	if err = pgxscan.Select(ctx, s.db, &out, applicationsSQL, s.sessionID); err != nil {
		return nil, handleError(err)
	}

	var prefs []preferenceRow
	if err = pgxscan.Select(ctx, s.db, &prefs, preferencesSQL, s.sessionID); err != nil {
		return nil, handleError(err)
	}

	index := make(map[string]int, len(out))
	for i := range out {
		index[out[i].Utorid] = i
	}
	for _, p := range prefs {
		i, ok := index[p.Utorid]
		if !ok {
			continue
		}
		if out[i].Preferences == nil {
			out[i].Preferences = make(map[string]int)
		}
		out[i].Preferences[p.PositionCode] = p.PreferenceLevel
	}
	return out, nil
}

const positionsSQL = `
	SELECT id, position_code, COALESCE(position_title, '') AS position_title,
	       COALESCE(hours_per_assignment, 0) AS hours_per_assignment,
	       start_date, end_date, session_id
	FROM positions
	WHERE session_id = $1
	ORDER BY position_code
`

// Positions implements Catalog.
func (s *PostgresStore) Positions(ctx context.Context) (out []model.Position, err error) {
	defer func(start time.Time) { track("positions", start, err) }(time.Now())

	if err = pgxscan.Select(ctx, s.db, &out, positionsSQL, s.sessionID); err != nil {
		return nil, handleError(err)
	}
	return out, nil
}

// Ping checks that the database answers.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return handleError(err)
	}
	return nil
}
