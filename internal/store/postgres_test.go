package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigrise-data/bigrise/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "20251110", "api", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "20251110", "api")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("completed", "", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), "missing", model.RunStatusCompleted, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_WithPhases(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Date(2025, 11, 10, 1, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Minute)
	errNull := (*string)(nil)

	mock.ExpectQuery(`SELECT id, target_date, triggered_by, status, error, started_at, finished_at FROM runs`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "target_date", "triggered_by", "status", "error", "started_at", "finished_at"}).
			AddRow("run-1", "20251110", "workflow", "completed", errNull, started, &finished))

	detail := "3 collectors"
	mock.ExpectQuery(`SELECT run_id, name, status, detail, started_at, finished_at`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.
			NewRows([]string{"run_id", "name", "status", "detail", "started_at", "finished_at"}).
			AddRow("run-1", "collect", "complete", &detail, started, &finished))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.Len(t, run.Phases, 1)
	assert.Equal(t, "collect", run.Phases[0].Name)
	assert.Equal(t, "3 collectors", run.Phases[0].Detail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, target_date, triggered_by, status, error, started_at, finished_at FROM runs`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartCollect_ReturnsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO collect_log .* RETURNING id`).
		WithArgs("news", "20251110", "running", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := s.StartCollect(context.Background(), "news", "20251110")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LastCollectSuccess_NoRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT finished_at FROM collect_log`).
		WithArgs("news", "completed").
		WillReturnError(pgx.ErrNoRows)

	last, err := s.LastCollectSuccess(context.Background(), "news")
	require.NoError(t, err)
	assert.Nil(t, last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveMatchSummary(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO match_summaries`).
		WithArgs("run-1", "20251110", 100, 80, 20, 10, 2, 1, 3,
			"out/full.csv", "out/recent.csv", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveMatchSummary(context.Background(), &model.MatchSummary{
		RunID: "run-1", TargetDate: "20251110",
		Holdings: 100, Matched: 80, Unmatched: 20, Recent: 10,
		SkippedRows: 2, BadDates: 1, Ambiguous: 3,
		FullPath: "out/full.csv", RecentPath: "out/recent.csv",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
