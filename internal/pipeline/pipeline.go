// Package pipeline ties the stages together: collect the source datasets,
// match holdings against industry metadata, record the run, and notify.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/collect"
	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/internal/dataset"
	"github.com/bigrise-data/bigrise/internal/match"
	"github.com/bigrise-data/bigrise/internal/model"
	"github.com/bigrise-data/bigrise/internal/notify"
	"github.com/bigrise-data/bigrise/internal/store"
)

// Pipeline is the end-to-end run orchestrator.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	collector *collect.Engine
	matcher   *match.Engine
	notifier  *notify.Notifier
	log       *zap.Logger
}

// New assembles a pipeline. The store may be nil for one-off matcher
// invocations that keep no history.
func New(cfg *config.Config, st store.Store, collector *collect.Engine, notifier *notify.Notifier) (*Pipeline, error) {
	rules := match.DefaultRules()
	if cfg.Match.SuffixFile != "" {
		var err error
		rules, err = match.LoadRules(cfg.Match.SuffixFile)
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		cfg:       cfg,
		store:     st,
		collector: collector,
		matcher:   match.NewEngine(match.NewNormalizer(rules)),
		notifier:  notifier,
		log:       zap.L().With(zap.String("component", "pipeline")),
	}, nil
}

// ReferenceDate returns the default target date: yesterday in the configured
// timezone, formatted YYYYMMDD. The datasets describe completed trading days,
// so a run on any given morning targets the day before.
func ReferenceDate(timezone string) (string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: load timezone %s", timezone)
	}
	return time.Now().In(loc).AddDate(0, 0, -1).Format("20060102"), nil
}

// HoldingsPath is the default holdings input for a target date.
func (p *Pipeline) HoldingsPath(date string) string {
	return filepath.Join(p.cfg.Data.DataDir, collect.HoldingsName(date))
}

// IndustryPath is the default industry input for a target date.
func (p *Pipeline) IndustryPath(date string) string {
	return filepath.Join(p.cfg.Data.DataDir, collect.IndustryName(date))
}

// MatchRequest names the inputs of one matcher execution. Empty paths fall
// back to the collector outputs for the target date.
type MatchRequest struct {
	TargetDate   string
	HoldingsPath string
	IndustryPath string
	OutDir       string
	Progress     func(n int)
}

// Match loads the datasets, runs the matcher, writes the paired outputs, and
// records the summary when a store is attached.
func (p *Pipeline) Match(ctx context.Context, runID string, req MatchRequest) (*match.Result, error) {
	if req.HoldingsPath == "" {
		req.HoldingsPath = p.HoldingsPath(req.TargetDate)
	}
	if req.IndustryPath == "" {
		req.IndustryPath = p.IndustryPath(req.TargetDate)
	}
	if req.OutDir == "" {
		req.OutDir = p.cfg.Data.OutDir
	}

	reference, err := time.Parse("20060102", req.TargetDate)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse target date %q", req.TargetDate)
	}

	table, err := dataset.LoadHoldings(ctx, req.HoldingsPath)
	if err != nil {
		return nil, err
	}
	entries, err := dataset.LoadIndustry(ctx, req.IndustryPath)
	if err != nil {
		return nil, err
	}

	result, err := p.matcher.Run(ctx, table, entries, match.Params{
		Reference:        reference,
		WindowDays:       p.cfg.Match.WindowDays,
		Workers:          p.cfg.Match.Workers,
		SuggestUnmatched: p.cfg.Match.SuggestUnmatched,
		SuggestTopK:      p.cfg.Match.SuggestTopK,
		Progress:         req.Progress,
	})
	if err != nil {
		return nil, err
	}

	fullPath, recentPath, err := dataset.WriteMatchOutputs(
		req.OutDir, req.TargetDate, result.Columns, result.Full, result.Recent)
	if err != nil {
		return nil, err
	}
	result.Summary.FullPath = fullPath
	result.Summary.RecentPath = recentPath
	result.Summary.RunID = runID

	if p.store != nil {
		if err := p.store.SaveMatchSummary(ctx, &result.Summary); err != nil {
			p.log.Error("failed to record match summary", zap.Error(err))
		}
	}
	return result, nil
}

// RunOpts configures a full pipeline run.
type RunOpts struct {
	// Only restricts the collect phase to the named collectors.
	Only []string
	// Force runs collectors even when the collect log says they ran today.
	Force bool
}

// Run executes collect then match for one target date, recording every phase
// in the store and posting the outcome to the notifier. Collector failures
// don't stop the match (stale inputs may still be present), but they do fail
// the run.
func (p *Pipeline) Run(ctx context.Context, targetDate, trigger string, opts RunOpts) (*model.Run, error) {
	if targetDate == "" {
		var err error
		targetDate, err = ReferenceDate(p.cfg.Data.Timezone)
		if err != nil {
			return nil, err
		}
	}

	run, err := p.store.CreateRun(ctx, targetDate, trigger)
	if err != nil {
		return nil, err
	}
	log := p.log.With(zap.String("run_id", run.ID), zap.String("target_date", targetDate))
	log.Info("run started", zap.String("trigger", trigger))

	var problems []string

	collected, err := p.runCollectPhase(ctx, run.ID, targetDate, opts)
	if err != nil {
		return p.failRun(ctx, run, eris.Wrap(err, "pipeline: collect phase"))
	}
	if failures := collected.Failures(); len(failures) > 0 {
		problems = append(problems, "collectors failed: "+strings.Join(failures, ", "))
	}

	matchSummary, err := p.MatchPhase(ctx, run.ID, targetDate)
	if err != nil {
		problems = append(problems, eris.ToString(err, false))
	}

	status := model.RunStatusCompleted
	errMsg := ""
	if len(problems) > 0 {
		status = model.RunStatusFailed
		errMsg = strings.Join(problems, "; ")
	}
	if err := p.store.FinishRun(ctx, run.ID, status, errMsg); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}
	run.Status = status
	run.Error = errMsg

	p.notifier.Send(ctx, &notify.Message{
		RunID:      run.ID,
		TargetDate: targetDate,
		Status:     status,
		Error:      errMsg,
		Collected:  collected.Collected,
		Failed:     collected.Failures(),
		Match:      matchSummary,
	})

	log.Info("run finished", zap.String("status", string(status)))
	return run, nil
}

func (p *Pipeline) runCollectPhase(ctx context.Context, runID, targetDate string, opts RunOpts) (*collect.Summary, error) {
	if err := p.store.StartPhase(ctx, runID, "collect"); err != nil {
		return nil, err
	}

	summary, err := p.collector.Run(ctx, collect.RunOpts{
		Only:  opts.Only,
		Force: opts.Force,
		Params: collect.Params{
			TargetDate: targetDate,
			DataDir:    p.cfg.Data.DataDir,
			KeepTemp:   p.cfg.Data.KeepTemp,
			Progress:   p.cfg.Collect.Progress,
		},
	})
	if err != nil {
		p.finishPhase(ctx, runID, "collect", model.PhaseStatusFailed, eris.ToString(err, false))
		return nil, err
	}

	detail := fmt.Sprintf("collected=%d skipped=%d failed=%d",
		summary.Collected, summary.Skipped, summary.Failed)
	status := model.PhaseStatusComplete
	if summary.Failed > 0 {
		status = model.PhaseStatusFailed
		detail += " (" + strings.Join(summary.Failures(), ", ") + ")"
	}
	p.finishPhase(ctx, runID, "collect", status, detail)
	return summary, nil
}

// MatchPhase runs the match stage under run-phase bookkeeping. The workflow
// activities drive it directly; Run goes through it too.
func (p *Pipeline) MatchPhase(ctx context.Context, runID, targetDate string) (*model.MatchSummary, error) {
	if err := p.store.StartPhase(ctx, runID, "match"); err != nil {
		return nil, err
	}

	result, err := p.Match(ctx, runID, MatchRequest{TargetDate: targetDate})
	if err != nil {
		p.finishPhase(ctx, runID, "match", model.PhaseStatusFailed, eris.ToString(err, false))
		return nil, err
	}

	detail := fmt.Sprintf("holdings=%d matched=%d recent=%d",
		result.Summary.Holdings, result.Summary.Matched, result.Summary.Recent)
	p.finishPhase(ctx, runID, "match", model.PhaseStatusComplete, detail)
	return &result.Summary, nil
}

func (p *Pipeline) failRun(ctx context.Context, run *model.Run, err error) (*model.Run, error) {
	msg := eris.ToString(err, false)
	if storeErr := p.store.FinishRun(ctx, run.ID, model.RunStatusFailed, msg); storeErr != nil {
		p.log.Error("failed to record run failure", zap.Error(storeErr))
	}
	run.Status = model.RunStatusFailed
	run.Error = msg

	p.notifier.Send(ctx, &notify.Message{
		RunID:      run.ID,
		TargetDate: run.TargetDate,
		Status:     model.RunStatusFailed,
		Error:      msg,
	})
	return run, err
}

func (p *Pipeline) finishPhase(ctx context.Context, runID, name string, status model.PhaseStatus, detail string) {
	if err := p.store.FinishPhase(ctx, runID, name, status, detail); err != nil {
		p.log.Error("failed to record phase",
			zap.String("phase", name),
			zap.Error(err),
		)
	}
}
