package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/collect"
	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/internal/model"
	"github.com/bigrise-data/bigrise/internal/notify"
	"github.com/bigrise-data/bigrise/internal/pipeline"
	"github.com/bigrise-data/bigrise/internal/store"
)

// RunHandle identifies an open run in the store.
type RunHandle struct {
	RunID      string `json:"run_id"`
	TargetDate string `json:"target_date"`
}

// BeginRunInput opens a run record.
type BeginRunInput struct {
	TargetDate string `json:"target_date,omitempty"`
	Trigger    string `json:"trigger"`
}

// CollectInput runs one collector.
type CollectInput struct {
	Collector  string `json:"collector"`
	TargetDate string `json:"target_date"`
	Force      bool   `json:"force"`
}

// CollectOutcome reports one collector activity. Failed collectors surface
// as activity errors instead, so Temporal retries them.
type CollectOutcome struct {
	Collector  string `json:"collector"`
	Status     string `json:"status"` // collected, skipped
	Rows       int    `json:"rows"`
	OutputPath string `json:"output_path,omitempty"`
}

// CollectPhaseInput closes the collect phase record after the fan-out.
type CollectPhaseInput struct {
	RunID     string   `json:"run_id"`
	Collected int      `json:"collected"`
	Skipped   int      `json:"skipped"`
	Failed    []string `json:"failed,omitempty"`
}

// MatchInput runs the match stage for an open run.
type MatchInput struct {
	RunID      string `json:"run_id"`
	TargetDate string `json:"target_date"`
}

// MatchOutcome is the match accounting carried through the workflow history.
type MatchOutcome = model.MatchSummary

// FinishRunInput closes the run record and triggers the notification.
type FinishRunInput struct {
	RunID      string        `json:"run_id"`
	TargetDate string        `json:"target_date"`
	Collected  int           `json:"collected"`
	Failed     []string      `json:"failed,omitempty"`
	Match      *MatchOutcome `json:"match,omitempty"`
	MatchError string        `json:"match_error,omitempty"`
}

// Activities are the worker-side implementations the DailyRun workflow
// schedules. They hold the same wiring the CLI run command uses.
type Activities struct {
	cfg      *config.Config
	store    store.Store
	engine   *collect.Engine
	reg      *collect.Registry
	pipe     *pipeline.Pipeline
	notifier *notify.Notifier
	log      *zap.Logger
}

// NewActivities wires the pipeline components into Temporal activities.
func NewActivities(cfg *config.Config, st store.Store, reg *collect.Registry, engine *collect.Engine, pipe *pipeline.Pipeline, notifier *notify.Notifier) *Activities {
	return &Activities{
		cfg:      cfg,
		store:    st,
		engine:   engine,
		reg:      reg,
		pipe:     pipe,
		notifier: notifier,
		log:      zap.L().With(zap.String("component", "workflow.activities")),
	}
}

// BeginRun opens the run record and its collect phase. An empty target date
// resolves to yesterday in the configured timezone.
func (a *Activities) BeginRun(ctx context.Context, in BeginRunInput) (*RunHandle, error) {
	targetDate := in.TargetDate
	if targetDate == "" {
		var err error
		targetDate, err = pipeline.ReferenceDate(a.cfg.Data.Timezone)
		if err != nil {
			return nil, err
		}
	}

	run, err := a.store.CreateRun(ctx, targetDate, in.Trigger)
	if err != nil {
		return nil, err
	}
	if err := a.store.StartPhase(ctx, run.ID, "collect"); err != nil {
		return nil, err
	}

	a.log.Info("run opened",
		zap.String("run_id", run.ID),
		zap.String("target_date", targetDate),
	)
	return &RunHandle{RunID: run.ID, TargetDate: targetDate}, nil
}

// CollectorNames lists the registered collectors for the fan-out.
func (a *Activities) CollectorNames(ctx context.Context) ([]string, error) {
	return a.reg.AllNames(), nil
}

// CollectDataset runs a single collector through the engine, which records
// the attempt in the collect log. A failed collector is an activity error so
// Temporal's retry policy applies per site.
func (a *Activities) CollectDataset(ctx context.Context, in CollectInput) (*CollectOutcome, error) {
	summary, err := a.engine.Run(ctx, collect.RunOpts{
		Only:  []string{in.Collector},
		Force: in.Force,
		Params: collect.Params{
			TargetDate: in.TargetDate,
			DataDir:    a.cfg.Data.DataDir,
			KeepTemp:   a.cfg.Data.KeepTemp,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(summary.Outcomes) == 0 {
		return nil, eris.Errorf("workflow: no outcome for collector %s", in.Collector)
	}

	out := summary.Outcomes[0]
	if out.Status == "failed" {
		return nil, eris.Errorf("workflow: collector %s: %s", in.Collector, out.Error)
	}

	res := &CollectOutcome{Collector: out.Collector, Status: out.Status}
	if out.Result != nil {
		res.Rows = out.Result.Rows
		res.OutputPath = out.Result.OutputPath
	}
	return res, nil
}

// CompleteCollectPhase closes the collect phase once the fan-out settles.
func (a *Activities) CompleteCollectPhase(ctx context.Context, in CollectPhaseInput) error {
	detail := fmt.Sprintf("collected=%d skipped=%d failed=%d",
		in.Collected, in.Skipped, len(in.Failed))
	status := model.PhaseStatusComplete
	if len(in.Failed) > 0 {
		status = model.PhaseStatusFailed
		detail += " (" + strings.Join(in.Failed, ", ") + ")"
	}
	return a.store.FinishPhase(ctx, in.RunID, "collect", status, detail)
}

// MatchHoldings runs the match stage with run-phase bookkeeping.
func (a *Activities) MatchHoldings(ctx context.Context, in MatchInput) (*MatchOutcome, error) {
	return a.pipe.MatchPhase(ctx, in.RunID, in.TargetDate)
}

// FinishRun closes the run record and posts the summary to the notifier.
func (a *Activities) FinishRun(ctx context.Context, in FinishRunInput) (*DailyRunResult, error) {
	var problems []string
	if len(in.Failed) > 0 {
		problems = append(problems, "collectors failed: "+strings.Join(in.Failed, ", "))
	}
	if in.MatchError != "" {
		problems = append(problems, in.MatchError)
	}

	status := model.RunStatusCompleted
	errMsg := ""
	if len(problems) > 0 {
		status = model.RunStatusFailed
		errMsg = strings.Join(problems, "; ")
	}

	if err := a.store.FinishRun(ctx, in.RunID, status, errMsg); err != nil {
		return nil, err
	}

	a.notifier.Send(ctx, &notify.Message{
		RunID:      in.RunID,
		TargetDate: in.TargetDate,
		Status:     status,
		Error:      errMsg,
		Collected:  in.Collected,
		Failed:     in.Failed,
		Match:      in.Match,
	})

	a.log.Info("run closed",
		zap.String("run_id", in.RunID),
		zap.String("status", string(status)),
	)
	return &DailyRunResult{
		RunID:      in.RunID,
		TargetDate: in.TargetDate,
		Status:     string(status),
		Error:      errMsg,
		Collected:  in.Collected,
		Failed:     in.Failed,
	}, nil
}
