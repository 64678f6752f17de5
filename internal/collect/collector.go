// Package collect runs the site collectors that refresh the local datasets:
// Naver Finance news, RISE ETF holdings, and the BigFinance industry tree.
// Each collector writes a date-stamped CSV under the data directory and is
// tracked in the collect log so scheduled runs skip work already done today.
package collect

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Params carries the per-run settings every collector receives.
type Params struct {
	// TargetDate is the YYYYMMDD reference date stamped into output names.
	TargetDate string
	// DataDir is where output CSVs land.
	DataDir string
	// KeepTemp keeps intermediate files a collector would otherwise remove.
	KeepTemp bool
	// Progress renders a terminal progress bar for long fetch loops.
	Progress bool
}

// Result holds the outcome of one collector execution.
type Result struct {
	Rows       int            `json:"rows"`
	OutputPath string         `json:"output_path"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Collector is one site collector.
type Collector interface {
	// Name returns the unique identifier for this collector (e.g. "news").
	Name() string

	// ShouldRun decides if this collector is due given the current time and
	// the time of the last successful run (nil if never run).
	ShouldRun(now time.Time, lastRun *time.Time) bool

	// Collect fetches the source and writes the dataset CSV.
	Collect(ctx context.Context, p Params) (*Result, error)
}

// dueDaily reports whether a daily collector needs a run: once per calendar
// day, never-run counts as due.
func dueDaily(now time.Time, lastRun *time.Time) bool {
	if lastRun == nil {
		return true
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return lastRun.Before(today)
}

// newProgressBar returns a terminal progress bar, or nil when disabled or
// there is nothing to count. Callers tick it with bar.Add(1).
func newProgressBar(enabled bool, total int, description string) *progressbar.ProgressBar {
	if !enabled || total <= 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
	)
}

func tick(bar *progressbar.ProgressBar) {
	if bar != nil {
		bar.Add(1) //nolint:errcheck
	}
}

// sleepJitter pauses between requests to the same host: the base delay plus
// up to half again, cut short by context cancellation.
func sleepJitter(ctx context.Context, base time.Duration) {
	if base <= 0 {
		return
	}
	d := base + time.Duration(rand.Int63n(int64(base)/2+1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
