package collect

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/internal/dataset"
	"github.com/bigrise-data/bigrise/pkg/riseetf"
)

var holdingsColumns = []string{
	"name", "price", "change", "detail_url",
	"number", "item_name", "item_code", "base_price", "ratio", "value",
}

// HoldingsName is the file name of the flattened holdings CSV for a date.
func HoldingsName(date string) string {
	return "rise_finder_" + date + "_with_holdings_flattened.csv"
}

// RiseETFCollector scrapes the RISE ETF finder and flattens every fund's
// holdings into one table, one row per constituent.
type RiseETFCollector struct {
	cfg    config.RiseETFConfig
	client riseetf.Client
	log    *zap.Logger
}

// NewRiseETFCollector creates the ETF holdings collector.
func NewRiseETFCollector(cfg config.RiseETFConfig, client riseetf.Client) *RiseETFCollector {
	return &RiseETFCollector{
		cfg:    cfg,
		client: client,
		log:    zap.L().With(zap.String("component", "collect.riseetf")),
	}
}

// Name implements Collector.
func (c *RiseETFCollector) Name() string { return "riseetf" }

// ShouldRun implements Collector.
func (c *RiseETFCollector) ShouldRun(now time.Time, lastRun *time.Time) bool {
	return dueDaily(now, lastRun)
}

// Collect lists the finder page, scrapes each fund's composition tab
// concurrently, and writes the flattened table. A fund whose detail page
// fails is logged and contributes no rows; the rest still land.
func (c *RiseETFCollector) Collect(ctx context.Context, p Params) (*Result, error) {
	if err := os.MkdirAll(p.DataDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "collect: create data dir %s", p.DataDir)
	}

	etfs, err := c.client.ListETFs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "collect: list etfs")
	}
	c.log.Info("finder listed", zap.Int("etfs", len(etfs)))

	bar := newProgressBar(p.Progress, len(etfs), "scraping holdings")

	var mu sync.Mutex
	perETF := make([][][]string, len(etfs))
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, etf := range etfs {
		g.Go(func() error {
			defer tick(bar)
			if err := gctx.Err(); err != nil {
				return err
			}
			if etf.DetailURL == "" {
				c.log.Warn("etf has no detail url", zap.String("name", etf.Name))
				return nil
			}

			holdings, err := c.client.Holdings(gctx, etf.DetailURL)
			if err != nil {
				c.log.Warn("holdings scrape failed",
					zap.String("name", etf.Name),
					zap.Error(err),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			rows := make([][]string, 0, len(holdings))
			for _, h := range holdings {
				rows = append(rows, []string{
					etf.Name, etf.Price, etf.Change, etf.DetailURL,
					h.Number, h.ItemName, h.ItemCode, h.BasePrice, h.Ratio, h.Value,
				})
			}
			perETF[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows [][]string
	for _, etfRows := range perETF {
		rows = append(rows, etfRows...)
	}

	outPath := filepath.Join(p.DataDir, HoldingsName(p.TargetDate))
	if err := dataset.WriteTable(outPath, holdingsColumns, rows); err != nil {
		return nil, err
	}

	return &Result{
		Rows:       len(rows),
		OutputPath: outPath,
		Metadata: map[string]any{
			"etfs":        len(etfs),
			"failed_etfs": failed,
		},
	}, nil
}
