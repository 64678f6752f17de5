package match

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bigrise-data/bigrise/internal/model"
)

// defaultWorkers bounds the resolution fan-out when Params leaves it unset.
const defaultWorkers = 8

// Params configures one matcher execution.
type Params struct {
	// Reference is the date the recency window is anchored on, normally the
	// day before the pipeline run.
	Reference time.Time
	// WindowDays widens or narrows the recency window; zero means the
	// default seven days.
	WindowDays int
	// Workers bounds concurrent resolution; zero means the default.
	Workers int
	// SuggestUnmatched turns on near-miss diagnostics for unmatched rows.
	SuggestUnmatched bool
	// SuggestTopK caps suggestions per unmatched row; zero means 5.
	SuggestTopK int
	// Progress, when set, is called once per resolved holding.
	Progress func(n int)
}

// Result is a matcher execution's output. Full carries every input holding
// in input order; Recent is the stable subset whose industry update date
// falls inside the window.
type Result struct {
	Columns     []string
	Full        []model.ResolvedHolding
	Recent      []model.ResolvedHolding
	Summary     model.MatchSummary
	Suggestions []Suggestion
}

// Engine runs the holdings/industry join end to end: index build, parallel
// resolution, recency classification.
type Engine struct {
	norm *Normalizer
}

// NewEngine creates a matcher engine with the given normalizer.
func NewEngine(norm *Normalizer) *Engine {
	return &Engine{norm: norm}
}

// Run executes the match. Row order in Result.Full mirrors the input
// holdings exactly, whatever the worker scheduling did; the only error paths
// are context cancellation and suggestion-index failures.
func (e *Engine) Run(ctx context.Context, table *model.HoldingTable, entries []model.IndustryEntry, p Params) (*Result, error) {
	log := zap.L().With(zap.String("component", "match_engine"))
	start := time.Now()

	if p.WindowDays <= 0 {
		p.WindowDays = DefaultRecentWindowDays
	}
	if p.Workers <= 0 {
		p.Workers = defaultWorkers
	}

	idx := BuildIndex(entries, e.norm)
	resolver := NewResolver(idx, e.norm)

	full := make([]model.ResolvedHolding, len(table.Rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i := range table.Rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			full[i] = resolver.Resolve(table.Rows[i])
			if p.Progress != nil {
				p.Progress(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "match: resolve holdings")
	}

	res := &Result{
		Columns: table.Columns,
		Full:    full,
		Summary: model.MatchSummary{
			TargetDate:  p.Reference.Format("20060102"),
			Holdings:    len(full),
			SkippedRows: idx.Skipped,
			CreatedAt:   time.Now().UTC(),
		},
	}

	for i := range full {
		h := &full[i]
		if !h.Matched {
			res.Summary.Unmatched++
			continue
		}
		res.Summary.Matched++
		if h.Candidates > 1 {
			res.Summary.Ambiguous++
		}
		if _, ok := model.ParseDate(h.IndustryUpdate); !ok {
			res.Summary.BadDates++
		} else if IsRecentDate(h.IndustryUpdate, p.Reference, p.WindowDays) {
			h.Recent = true
			res.Recent = append(res.Recent, *h)
			res.Summary.Recent++
		}
	}

	if p.SuggestUnmatched && res.Summary.Unmatched > 0 {
		if err := attachSuggestions(res, idx.CompanyNames(), e.norm, p.SuggestTopK); err != nil {
			return nil, err
		}
	}

	log.Info("match complete",
		zap.Int("holdings", res.Summary.Holdings),
		zap.Int("matched", res.Summary.Matched),
		zap.Int("unmatched", res.Summary.Unmatched),
		zap.Int("recent", res.Summary.Recent),
		zap.Int("ambiguous", res.Summary.Ambiguous),
		zap.Int("skipped_industry_rows", res.Summary.SkippedRows),
		zap.Int("bad_dates", res.Summary.BadDates),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// attachSuggestions adds near-miss diagnostics for every unmatched holding.
func attachSuggestions(res *Result, memberNames []string, norm *Normalizer, topK int) error {
	if topK <= 0 {
		topK = 5
	}

	sugg, err := NewSuggester(memberNames, norm)
	if err != nil {
		return err
	}
	defer sugg.Close() //nolint:errcheck

	for i := range res.Full {
		h := &res.Full[i]
		if h.Matched {
			continue
		}
		nearest, err := sugg.Nearest(h.ItemName, topK)
		if err != nil {
			return err
		}
		res.Suggestions = append(res.Suggestions, Suggestion{
			ItemName:   h.ItemName,
			Normalized: norm.Normalize(h.ItemName),
			Nearest:    nearest,
		})
	}
	return nil
}
