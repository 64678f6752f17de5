package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bigrise-data/bigrise/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	target_date  TEXT NOT NULL,
	triggered_by TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at  DATETIME
);

CREATE TABLE IF NOT EXISTS run_phases (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	detail      TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME,
	PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS collect_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	collector   TEXT NOT NULL,
	target_date TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	row_count   INTEGER NOT NULL DEFAULT 0,
	output_path TEXT,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
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
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_target_date ON runs(target_date);
CREATE INDEX IF NOT EXISTS idx_collect_log_collector ON collect_log(collector, status);
CREATE INDEX IF NOT EXISTS idx_match_summaries_date ON match_summaries(target_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, targetDate, trigger string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, target_date, triggered_by, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, targetDate, trigger, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:         id,
		TargetDate: targetDate,
		Trigger:    trigger,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, target_date, triggered_by, status, error, started_at, finished_at
		 FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	var errMsg sql.NullString
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.TargetDate, &r.Trigger, &r.Status, &errMsg, &r.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	r.Error = errMsg.String
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}

	phases, err := s.runPhases(ctx, runID)
	if err != nil {
		return nil, err
	}
	r.Phases = phases
	return &r, nil
}

func (s *SQLiteStore) runPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, name, status, detail, started_at, finished_at
		 FROM run_phases WHERE run_id = ? ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list phases for run %s", runID)
	}
	defer rows.Close()

	var phases []model.RunPhase
	for rows.Next() {
		var p model.RunPhase
		var detail sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&p.RunID, &p.Name, &p.Status, &detail, &p.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phase")
		}
		p.Detail = detail.String
		if finished.Valid {
			p.FinishedAt = &finished.Time
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "sqlite: iterate phases")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, target_date, triggered_by, status, error, started_at, finished_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.TargetDate != "" {
		query += ` AND target_date = ?`
		args = append(args, filter.TargetDate)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.TargetDate, &r.Trigger, &r.Status, &errMsg, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Error = errMsg.String
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) StartPhase(ctx context.Context, runID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (run_id, name, status, started_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, name) DO UPDATE SET status = excluded.status,
		   started_at = excluded.started_at, detail = NULL, finished_at = NULL`,
		runID, name, string(model.PhaseStatusRunning), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: start phase %s for run %s", name, runID)
}

func (s *SQLiteStore) FinishPhase(ctx context.Context, runID, name string, status model.PhaseStatus, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, detail = ?, finished_at = ? WHERE run_id = ? AND name = ?`,
		string(status), detail, time.Now().UTC(), runID, name,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish phase %s for run %s", name, runID)
	}
	return checkRowsAffected(res, "phase", runID+"/"+name)
}

func (s *SQLiteStore) StartCollect(ctx context.Context, collector, targetDate string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collect_log (collector, target_date, status, started_at) VALUES (?, ?, ?, ?)`,
		collector, targetDate, string(model.RunStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: start collect %s", collector)
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: collect entry id")
}

func (s *SQLiteStore) CompleteCollect(ctx context.Context, id int64, rows int, outputPath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE collect_log SET status = ?, row_count = ?, output_path = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusCompleted), rows, outputPath, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete collect %d", id)
	}
	return checkRowsAffectedID(res, "collect entry", id)
}

func (s *SQLiteStore) FailCollect(ctx context.Context, id int64, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE collect_log SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail collect %d", id)
	}
	return checkRowsAffectedID(res, "collect entry", id)
}

func (s *SQLiteStore) LastCollectSuccess(ctx context.Context, collector string) (*time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT finished_at FROM collect_log
		 WHERE collector = ? AND status = ? AND finished_at IS NOT NULL
		 ORDER BY finished_at DESC LIMIT 1`,
		collector, string(model.RunStatusCompleted),
	)

	var finished time.Time
	err := row.Scan(&finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: last collect success for %s", collector)
	}
	return &finished, nil
}

func (s *SQLiteStore) ListCollects(ctx context.Context, limit int) ([]model.CollectEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, collector, target_date, status, row_count, output_path, error, started_at, finished_at
		 FROM collect_log ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list collects")
	}
	defer rows.Close()

	var entries []model.CollectEntry
	for rows.Next() {
		var e model.CollectEntry
		var outputPath, errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&e.ID, &e.Collector, &e.TargetDate, &e.Status, &e.Rows,
			&outputPath, &errMsg, &e.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan collect entry")
		}
		e.OutputPath = outputPath.String
		e.Error = errMsg.String
		if finished.Valid {
			e.FinishedAt = &finished.Time
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list collects iterate")
}

func (s *SQLiteStore) SaveMatchSummary(ctx context.Context, summary *model.MatchSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO match_summaries
		 (run_id, target_date, holdings, matched, unmatched, recent, skipped_rows, bad_dates, ambiguous, full_path, recent_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, summary.TargetDate, summary.Holdings, summary.Matched, summary.Unmatched,
		summary.Recent, summary.SkippedRows, summary.BadDates, summary.Ambiguous,
		summary.FullPath, summary.RecentPath, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save match summary")
}

func (s *SQLiteStore) ListMatchSummaries(ctx context.Context, limit int) ([]model.MatchSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, target_date, holdings, matched, unmatched, recent, skipped_rows, bad_dates, ambiguous, full_path, recent_path, created_at
		 FROM match_summaries ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list match summaries")
	}
	defer rows.Close()

	var summaries []model.MatchSummary
	for rows.Next() {
		var m model.MatchSummary
		var runID sql.NullString
		if err := rows.Scan(&runID, &m.TargetDate, &m.Holdings, &m.Matched, &m.Unmatched,
			&m.Recent, &m.SkippedRows, &m.BadDates, &m.Ambiguous,
			&m.FullPath, &m.RecentPath, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match summary")
		}
		m.RunID = runID.String
		summaries = append(summaries, m)
	}
	return summaries, eris.Wrap(rows.Err(), "sqlite: list match summaries iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func checkRowsAffectedID(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}
