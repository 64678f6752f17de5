package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/bigrise-data/bigrise/internal/model"
)

// pgxPool is the slice of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	target_date  TEXT NOT NULL,
	triggered_by TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_phases (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	detail      TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ,
	PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS collect_log (
	id          BIGSERIAL PRIMARY KEY,
	collector   TEXT NOT NULL,
	target_date TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	row_count   INTEGER NOT NULL DEFAULT 0,
	output_path TEXT,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS match_summaries (
	run_id       TEXT,
	target_date  TEXT NOT NULL,
	holdings     INTEGER NOT NULL,
	matched      INTEGER NOT NULL,
	unmatched    INTEGER NOT NULL,
	recent       INTEGER NOT NULL,
	skipped_rows INTEGER NOT NULL,
	bad_dates    INTEGER NOT NULL,
	ambiguous    INTEGER NOT NULL,
	full_path    TEXT NOT NULL,
	recent_path  TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_target_date ON runs(target_date);
CREATE INDEX IF NOT EXISTS idx_collect_log_collector ON collect_log(collector, status);
CREATE INDEX IF NOT EXISTS idx_match_summaries_date ON match_summaries(target_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, targetDate, trigger string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, target_date, triggered_by, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, targetDate, trigger, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:         id,
		TargetDate: targetDate,
		Trigger:    trigger,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var errMsg *string
	var finished *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, target_date, triggered_by, status, error, started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.TargetDate, &r.Trigger, &r.Status, &errMsg, &r.StartedAt, &finished)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	r.FinishedAt = finished

	phases, err := s.runPhases(ctx, runID)
	if err != nil {
		return nil, err
	}
	r.Phases = phases
	return &r, nil
}

func (s *PostgresStore) runPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, name, status, detail, started_at, finished_at
		 FROM run_phases WHERE run_id = $1 ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list phases for run %s", runID)
	}
	defer rows.Close()

	var phases []model.RunPhase
	for rows.Next() {
		var p model.RunPhase
		var detail *string
		if err := rows.Scan(&p.RunID, &p.Name, &p.Status, &detail, &p.StartedAt, &p.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan phase")
		}
		if detail != nil {
			p.Detail = *detail
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "postgres: iterate phases")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, target_date, triggered_by, status, error, started_at, finished_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.TargetDate != "" {
		query += fmt.Sprintf(` AND target_date = $%d`, argIdx)
		args = append(args, filter.TargetDate)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var errMsg *string
		if err := rows.Scan(&r.ID, &r.TargetDate, &r.Trigger, &r.Status, &errMsg, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) StartPhase(ctx context.Context, runID, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_phases (run_id, name, status, started_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, name) DO UPDATE SET status = excluded.status,
		   started_at = excluded.started_at, detail = NULL, finished_at = NULL`,
		runID, name, string(model.PhaseStatusRunning), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: start phase %s for run %s", name, runID)
}

func (s *PostgresStore) FinishPhase(ctx context.Context, runID, name string, status model.PhaseStatus, detail string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_phases SET status = $1, detail = $2, finished_at = $3 WHERE run_id = $4 AND name = $5`,
		string(status), detail, time.Now().UTC(), runID, name,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish phase %s for run %s", name, runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("phase not found: %s/%s", runID, name)
	}
	return nil
}

func (s *PostgresStore) StartCollect(ctx context.Context, collector, targetDate string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO collect_log (collector, target_date, status, started_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		collector, targetDate, string(model.RunStatusRunning), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: start collect %s", collector)
	}
	return id, nil
}

func (s *PostgresStore) CompleteCollect(ctx context.Context, id int64, rows int, outputPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE collect_log SET status = $1, row_count = $2, output_path = $3, finished_at = $4 WHERE id = $5`,
		string(model.RunStatusCompleted), rows, outputPath, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete collect %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("collect entry not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) FailCollect(ctx context.Context, id int64, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE collect_log SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail collect %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("collect entry not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) LastCollectSuccess(ctx context.Context, collector string) (*time.Time, error) {
	var finished time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT finished_at FROM collect_log
		 WHERE collector = $1 AND status = $2 AND finished_at IS NOT NULL
		 ORDER BY finished_at DESC LIMIT 1`,
		collector, string(model.RunStatusCompleted),
	).Scan(&finished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: last collect success for %s", collector)
	}
	return &finished, nil
}

func (s *PostgresStore) ListCollects(ctx context.Context, limit int) ([]model.CollectEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, collector, target_date, status, row_count, output_path, error, started_at, finished_at
		 FROM collect_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list collects")
	}
	defer rows.Close()

	var entries []model.CollectEntry
	for rows.Next() {
		var e model.CollectEntry
		var outputPath, errMsg *string
		if err := rows.Scan(&e.ID, &e.Collector, &e.TargetDate, &e.Status, &e.Rows,
			&outputPath, &errMsg, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan collect entry")
		}
		if outputPath != nil {
			e.OutputPath = *outputPath
		}
		if errMsg != nil {
			e.Error = *errMsg
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list collects iterate")
}

func (s *PostgresStore) SaveMatchSummary(ctx context.Context, summary *model.MatchSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO match_summaries
		 (run_id, target_date, holdings, matched, unmatched, recent, skipped_rows, bad_dates, ambiguous, full_path, recent_path, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		summary.RunID, summary.TargetDate, summary.Holdings, summary.Matched, summary.Unmatched,
		summary.Recent, summary.SkippedRows, summary.BadDates, summary.Ambiguous,
		summary.FullPath, summary.RecentPath, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save match summary")
}

func (s *PostgresStore) ListMatchSummaries(ctx context.Context, limit int) ([]model.MatchSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, target_date, holdings, matched, unmatched, recent, skipped_rows, bad_dates, ambiguous, full_path, recent_path, created_at
		 FROM match_summaries ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list match summaries")
	}
	defer rows.Close()

	var summaries []model.MatchSummary
	for rows.Next() {
		var m model.MatchSummary
		var runID *string
		if err := rows.Scan(&runID, &m.TargetDate, &m.Holdings, &m.Matched, &m.Unmatched,
			&m.Recent, &m.SkippedRows, &m.BadDates, &m.Ambiguous,
			&m.FullPath, &m.RecentPath, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match summary")
		}
		if runID != nil {
			m.RunID = *runID
		}
		summaries = append(summaries, m)
	}
	return summaries, eris.Wrap(rows.Err(), "postgres: list match summaries iterate")
}
