// Package store persists run history: pipeline runs and their phases, the
// collect log the scheduler consults, and match summaries. Two backends are
// available, SQLite for single-host use and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus `json:"status,omitempty"`
	TargetDate string          `json:"target_date,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, targetDate, trigger string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases, keyed by (run, name)
	StartPhase(ctx context.Context, runID, name string) error
	FinishPhase(ctx context.Context, runID, name string, status model.PhaseStatus, detail string) error

	// Collect log
	StartCollect(ctx context.Context, collector, targetDate string) (int64, error)
	CompleteCollect(ctx context.Context, id int64, rows int, outputPath string) error
	FailCollect(ctx context.Context, id int64, errMsg string) error
	LastCollectSuccess(ctx context.Context, collector string) (*time.Time, error)
	ListCollects(ctx context.Context, limit int) ([]model.CollectEntry, error)

	// Match summaries
	SaveMatchSummary(ctx context.Context, summary *model.MatchSummary) error
	ListMatchSummaries(ctx context.Context, limit int) ([]model.MatchSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the configured store backend and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		s, err = NewSQLite(cfg.Path)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
