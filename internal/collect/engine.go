package collect

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Log records collector executions. The store implements it; the engine only
// needs this slice of it.
type Log interface {
	LastCollectSuccess(ctx context.Context, collector string) (*time.Time, error)
	StartCollect(ctx context.Context, collector, targetDate string) (int64, error)
	CompleteCollect(ctx context.Context, id int64, rows int, outputPath string) error
	FailCollect(ctx context.Context, id int64, errMsg string) error
}

// Engine orchestrates collector runs against the collect log.
type Engine struct {
	log *zap.Logger
	clg Log
	reg *Registry
}

// RunOpts configures which collectors run and how.
type RunOpts struct {
	Only  []string // restrict to specific collector names
	Force bool     // ignore ShouldRun() scheduling
	Params
}

// Outcome is the per-collector result of an engine run.
type Outcome struct {
	Collector string  `json:"collector"`
	Status    string  `json:"status"` // collected, skipped, failed
	Error     string  `json:"error,omitempty"`
	Result    *Result `json:"result,omitempty"`
}

// Summary aggregates one engine run.
type Summary struct {
	Collected int       `json:"collected"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Failures returns the names of collectors that failed.
func (s *Summary) Failures() []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Status == "failed" {
			out = append(out, o.Collector)
		}
	}
	return out
}

// NewEngine creates a collector engine.
func NewEngine(clg Log, reg *Registry) *Engine {
	return &Engine{
		log: zap.L().With(zap.String("component", "collect.engine")),
		clg: clg,
		reg: reg,
	}
}

// Run iterates over the selected collectors, checks if each is due, and runs
// it. Every execution is recorded in the collect log. A failing collector
// does not stop the others; the summary carries the failures.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*Summary, error) {
	now := time.Now()

	collectors, err := e.reg.Select(opts.Only)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	if len(collectors) == 0 {
		e.log.Info("no collectors selected")
		return summary, nil
	}

	e.log.Info("selected collectors",
		zap.Int("count", len(collectors)),
		zap.String("target_date", opts.TargetDate),
	)

	for _, c := range collectors {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		cLog := e.log.With(zap.String("collector", c.Name()))

		if !opts.Force {
			lastRun, err := e.clg.LastCollectSuccess(ctx, c.Name())
			if err != nil {
				return summary, eris.Wrapf(err, "collect: check last run for %s", c.Name())
			}
			if !c.ShouldRun(now, lastRun) {
				cLog.Debug("skipping (not due)")
				summary.Skipped++
				summary.Outcomes = append(summary.Outcomes, Outcome{Collector: c.Name(), Status: "skipped"})
				continue
			}
		}

		cLog.Info("starting collect")
		entryID, err := e.clg.StartCollect(ctx, c.Name(), opts.TargetDate)
		if err != nil {
			return summary, eris.Wrapf(err, "collect: start log entry for %s", c.Name())
		}

		start := time.Now()
		result, err := c.Collect(ctx, opts.Params)
		elapsed := time.Since(start)

		if err != nil {
			cLog.Error("collect failed", zap.Error(err), zap.Duration("elapsed", elapsed))
			if logErr := e.clg.FailCollect(ctx, entryID, err.Error()); logErr != nil {
				cLog.Error("failed to record collect failure", zap.Error(logErr))
			}
			summary.Failed++
			summary.Outcomes = append(summary.Outcomes, Outcome{
				Collector: c.Name(), Status: "failed", Error: err.Error(),
			})
			continue
		}

		if err := e.clg.CompleteCollect(ctx, entryID, result.Rows, result.OutputPath); err != nil {
			cLog.Error("failed to record collect completion", zap.Error(err))
		}

		cLog.Info("collect complete",
			zap.Int("rows", result.Rows),
			zap.String("output", result.OutputPath),
			zap.Duration("elapsed", elapsed),
		)
		summary.Collected++
		summary.Outcomes = append(summary.Outcomes, Outcome{
			Collector: c.Name(), Status: "collected", Result: result,
		})
	}

	e.log.Info("engine run complete",
		zap.Int("collected", summary.Collected),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}
