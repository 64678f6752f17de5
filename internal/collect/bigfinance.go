package collect

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/internal/dataset"
	"github.com/bigrise-data/bigrise/pkg/bigfinance"
)

var industryColumns = []string{
	"main_code", "main_name", "group_id", "group_name",
	"sub_code", "sub_name", "update_date", "data_type",
	"data_code", "data_name", "last_update",
	"frequency", "unit", "source", "footnote", "yoyFlag", "updateDate",
	"companies",
}

// IndustryName is the file name of the enriched industry CSV for a date.
func IndustryName(date string) string {
	return "industry_categories_" + date + "_with_meta_companies.csv"
}

// subMeta is the enrichment fetched once per (main, sub) pair and fanned out
// to every data-series row of that pair.
type subMeta struct {
	header    *bigfinance.HeaderMeta
	companies string
}

// BigFinanceCollector pulls the industry category tree and enriches each
// sub-category with its series-header metadata and member companies.
type BigFinanceCollector struct {
	cfg    config.BigFinanceConfig
	client bigfinance.Client
	log    *zap.Logger
}

// NewBigFinanceCollector creates the industry metadata collector.
func NewBigFinanceCollector(cfg config.BigFinanceConfig, client bigfinance.Client) *BigFinanceCollector {
	return &BigFinanceCollector{
		cfg:    cfg,
		client: client,
		log:    zap.L().With(zap.String("component", "collect.bigfinance")),
	}
}

// Name implements Collector.
func (c *BigFinanceCollector) Name() string { return "bigfinance" }

// ShouldRun implements Collector.
func (c *BigFinanceCollector) ShouldRun(now time.Time, lastRun *time.Time) bool {
	return dueDaily(now, lastRun)
}

// Collect logs in, flattens the category tree to one row per data series,
// and joins in the per-sub-category header metadata and company lists. A
// sub-category whose enrichment fails keeps its tree row with the extra
// columns empty.
func (c *BigFinanceCollector) Collect(ctx context.Context, p Params) (*Result, error) {
	if err := os.MkdirAll(p.DataDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "collect: create data dir %s", p.DataDir)
	}

	if err := c.client.Login(ctx); err != nil {
		return nil, eris.Wrap(err, "collect: bigfinance login")
	}

	cats, err := c.client.Categories(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "collect: fetch categories")
	}

	type pair struct{ main, sub string }
	var order []pair
	seen := make(map[pair]struct{})
	forEachSub(cats, func(cat bigfinance.Category, _ bigfinance.Group, sub bigfinance.SubCategory) {
		key := pair{cat.Code, sub.SubCode}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		order = append(order, key)
	})
	c.log.Info("category tree fetched",
		zap.Int("categories", len(cats.Categories)),
		zap.Int("sub_categories", len(order)),
	)

	bar := newProgressBar(p.Progress, len(order), "enriching sub-categories")
	delay := time.Duration(c.cfg.DelayMs) * time.Millisecond

	var mu sync.Mutex
	meta := make(map[pair]subMeta, len(order))
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, key := range order {
		g.Go(func() error {
			defer tick(bar)
			if err := gctx.Err(); err != nil {
				return err
			}
			sleepJitter(gctx, delay)

			m, err := c.enrich(gctx, key.main, key.sub)
			if err != nil {
				c.log.Warn("sub-category enrichment failed",
					zap.String("main_code", key.main),
					zap.String("sub_code", key.sub),
					zap.Error(err),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			meta[key] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows [][]string
	forEachSub(cats, func(cat bigfinance.Category, grp bigfinance.Group, sub bigfinance.SubCategory) {
		m := meta[pair{cat.Code, sub.SubCode}]
		series := sub.DataCategories
		if len(series) == 0 {
			// Keep the sub-category visible even without data series.
			series = []bigfinance.DataCategory{{}}
		}
		for _, dc := range series {
			row := []string{
				cat.Code, cat.Name, grp.GroupID, grp.GroupName,
				sub.SubCode, sub.SubName, sub.UpdateDate, sub.DataType,
				dc.DataCode, dc.DataName, dc.LastUpdate,
			}
			if m.header != nil {
				row = append(row,
					m.header.Frequency, m.header.Unit, m.header.Source,
					m.header.Footnote, m.header.YoYFlag, m.header.UpdateDate,
				)
			} else {
				row = append(row, "", "", "", "", "", "")
			}
			rows = append(rows, append(row, m.companies))
		}
	})

	outPath := filepath.Join(p.DataDir, IndustryName(p.TargetDate))
	if err := dataset.WriteTable(outPath, industryColumns, rows); err != nil {
		return nil, err
	}

	return &Result{
		Rows:       len(rows),
		OutputPath: outPath,
		Metadata: map[string]any{
			"sub_categories": len(order),
			"failed_subs":    failed,
		},
	}, nil
}

// enrich fetches the header metadata and company list for one pair. The
// companies land as a JSON array of {code, name} objects, the shape the
// matcher parses back out of the CSV.
func (c *BigFinanceCollector) enrich(ctx context.Context, mainCode, subCode string) (subMeta, error) {
	header, err := c.client.HeaderMeta(ctx, mainCode, subCode)
	if err != nil {
		return subMeta{}, err
	}

	companies, err := c.client.Companies(ctx, mainCode, subCode)
	if err != nil {
		return subMeta{}, err
	}

	type company struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	list := make([]company, 0, len(companies))
	for _, cp := range companies {
		list = append(list, company{Code: cp.Code, Name: cp.Name})
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return subMeta{}, eris.Wrapf(err, "collect: encode companies for %s/%s", mainCode, subCode)
	}

	return subMeta{header: header, companies: string(encoded)}, nil
}

func forEachSub(cats *bigfinance.Categories, fn func(bigfinance.Category, bigfinance.Group, bigfinance.SubCategory)) {
	for _, cat := range cats.Categories {
		for _, grp := range cat.Groups {
			for _, sub := range grp.SubCategories {
				fn(cat, grp, sub)
			}
		}
	}
}
