package model

import "time"

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PhaseStatus represents the state of one phase within a run.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// Run is one end-to-end pipeline run: collect, match, notify.
type Run struct {
	ID         string     `json:"id"`
	TargetDate string     `json:"target_date"` // YYYYMMDD reference date
	Trigger    string     `json:"trigger"`     // cli, api, workflow
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Phases     []RunPhase `json:"phases,omitempty"`
}

// RunPhase is one phase of a run, e.g. collect:news or match.
type RunPhase struct {
	RunID      string      `json:"run_id"`
	Name       string      `json:"name"`
	Status     PhaseStatus `json:"status"`
	Detail     string      `json:"detail,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// CollectEntry is one collector execution in the collect log. LastSuccess
// queries scan these to decide whether a collector is due.
type CollectEntry struct {
	ID         int64      `json:"id"`
	Collector  string     `json:"collector"`
	TargetDate string     `json:"target_date"`
	Status     RunStatus  `json:"status"`
	Rows       int        `json:"rows"`
	OutputPath string     `json:"output_path,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// MatchSummary is the per-run accounting of a matcher execution.
type MatchSummary struct {
	RunID        string    `json:"run_id,omitempty"`
	TargetDate   string    `json:"target_date"`
	Holdings     int       `json:"holdings"`
	Matched      int       `json:"matched"`
	Unmatched    int       `json:"unmatched"`
	Recent       int       `json:"recent"`
	SkippedRows  int       `json:"skipped_industry_rows"`
	BadDates     int       `json:"bad_dates"`
	Ambiguous    int       `json:"ambiguous"`
	FullPath     string    `json:"full_path"`
	RecentPath   string    `json:"recent_path"`
	CreatedAt    time.Time `json:"created_at"`
}
