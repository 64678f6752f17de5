// Package workflow runs the daily pipeline on Temporal. The workflow fans
// the collectors out as parallel activities, then matches, then closes the
// run, so a crashed worker resumes mid-run instead of starting over.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DailyRunInput parameterizes one scheduled run.
type DailyRunInput struct {
	// TargetDate is the YYYYMMDD reference date. Empty means yesterday in
	// the configured timezone, resolved worker-side.
	TargetDate string `json:"target_date,omitempty"`
	// Only restricts the collect fan-out to the named collectors.
	Only []string `json:"only,omitempty"`
	// Force runs collectors even when the collect log says they ran today.
	Force bool `json:"force"`
}

// DailyRunResult is what the workflow leaves in its history.
type DailyRunResult struct {
	RunID      string   `json:"run_id"`
	TargetDate string   `json:"target_date"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	Collected  int      `json:"collected"`
	Failed     []string `json:"failed_collectors,omitempty"`
}

// DailyRun is the daily pipeline workflow. Each collector is its own
// activity so Temporal retries only the site that flaked; the match and the
// bookkeeping activities run once the fan-out settles. A failing collector
// fails the run but never stops the match, since stale inputs from an
// earlier day may still produce a usable output pair.
func DailyRun(ctx workflow.Context, in DailyRunInput) (*DailyRunResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Minute,
			MaximumAttempts: 2,
		},
	})
	log := workflow.GetLogger(ctx)

	var a *Activities

	var run RunHandle
	if err := workflow.ExecuteActivity(ctx, a.BeginRun, BeginRunInput{
		TargetDate: in.TargetDate,
		Trigger:    "workflow",
	}).Get(ctx, &run); err != nil {
		return nil, err
	}
	log.Info("run opened", "run_id", run.RunID, "target_date", run.TargetDate)

	names := in.Only
	if len(names) == 0 {
		if err := workflow.ExecuteActivity(ctx, a.CollectorNames).Get(ctx, &names); err != nil {
			return nil, err
		}
	}

	futures := make([]workflow.Future, len(names))
	for i, name := range names {
		futures[i] = workflow.ExecuteActivity(ctx, a.CollectDataset, CollectInput{
			Collector:  name,
			TargetDate: run.TargetDate,
			Force:      in.Force,
		})
	}

	var collected, skipped int
	var failed []string
	for i, f := range futures {
		var out CollectOutcome
		if err := f.Get(ctx, &out); err != nil {
			log.Error("collect activity failed", "collector", names[i], "error", err)
			failed = append(failed, names[i])
			continue
		}
		switch out.Status {
		case "collected":
			collected++
		case "skipped":
			skipped++
		case "failed":
			failed = append(failed, out.Collector)
		}
	}

	if err := workflow.ExecuteActivity(ctx, a.CompleteCollectPhase, CollectPhaseInput{
		RunID:     run.RunID,
		Collected: collected,
		Skipped:   skipped,
		Failed:    failed,
	}).Get(ctx, nil); err != nil {
		log.Error("failed to record collect phase", "error", err)
	}

	var matchSummary *MatchOutcome
	matchErr := ""
	if err := workflow.ExecuteActivity(ctx, a.MatchHoldings, MatchInput{
		RunID:      run.RunID,
		TargetDate: run.TargetDate,
	}).Get(ctx, &matchSummary); err != nil {
		log.Error("match failed", "error", err)
		matchErr = err.Error()
	}

	var result DailyRunResult
	if err := workflow.ExecuteActivity(ctx, a.FinishRun, FinishRunInput{
		RunID:      run.RunID,
		TargetDate: run.TargetDate,
		Collected:  collected,
		Failed:     failed,
		Match:      matchSummary,
		MatchError: matchErr,
	}).Get(ctx, &result); err != nil {
		return nil, err
	}

	log.Info("run closed", "run_id", result.RunID, "status", result.Status)
	return &result, nil
}
