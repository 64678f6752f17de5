package collect

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/internal/dataset"
	"github.com/bigrise-data/bigrise/pkg/naver"
)

var newsColumns = []string{
	"section_id3", "section_name", "office_id", "article_id",
	"url", "title", "press", "wdate",
}

// NewsListName is the file name of the article-list CSV for a date.
func NewsListName(date string) string {
	return "naver_news_" + date + ".csv"
}

// NewsContentsName is the file name of the article CSV with bodies for a date.
func NewsContentsName(date string) string {
	return "naver_news_" + date + "_with_contents.csv"
}

// NewsCollector crawls the Naver Finance news sections for one date.
type NewsCollector struct {
	cfg    config.NaverConfig
	client naver.Client
	log    *zap.Logger
}

// NewNewsCollector creates the news collector.
func NewNewsCollector(cfg config.NaverConfig, client naver.Client) *NewsCollector {
	return &NewsCollector{
		cfg:    cfg,
		client: client,
		log:    zap.L().With(zap.String("component", "collect.news")),
	}
}

// Name implements Collector.
func (c *NewsCollector) Name() string { return "news" }

// ShouldRun implements Collector.
func (c *NewsCollector) ShouldRun(now time.Time, lastRun *time.Time) bool {
	return dueDaily(now, lastRun)
}

// Collect lists every configured section for the target date, page by page,
// then optionally fetches article bodies. The list CSV is written first so a
// body-fetch failure never loses the listing; with bodies on, the list file
// is an intermediate and is removed unless KeepTemp is set.
func (c *NewsCollector) Collect(ctx context.Context, p Params) (*Result, error) {
	if err := os.MkdirAll(p.DataDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "collect: create data dir %s", p.DataDir)
	}

	var articles []naver.Article
	for _, section := range c.cfg.Sections {
		sectionArticles, err := c.collectSection(ctx, p.TargetDate, section)
		if err != nil {
			return nil, err
		}
		articles = append(articles, sectionArticles...)
	}
	articles = dedupeArticles(articles)

	listPath := filepath.Join(p.DataDir, NewsListName(p.TargetDate))
	if err := dataset.WriteTable(listPath, newsColumns, articleRows(articles, false)); err != nil {
		return nil, err
	}
	c.log.Info("article list written",
		zap.Int("articles", len(articles)),
		zap.String("path", listPath),
	)

	result := &Result{
		Rows:       len(articles),
		OutputPath: listPath,
		Metadata:   map[string]any{"sections": len(c.cfg.Sections)},
	}
	if !c.cfg.FetchBodies {
		return result, nil
	}

	fetched, err := c.fetchBodies(ctx, articles, p.Progress)
	if err != nil {
		return nil, err
	}

	contentsPath := filepath.Join(p.DataDir, NewsContentsName(p.TargetDate))
	cols := append(append([]string{}, newsColumns...), "contents")
	if err := dataset.WriteTable(contentsPath, cols, articleRows(articles, true)); err != nil {
		return nil, err
	}
	if !p.KeepTemp {
		os.Remove(listPath) //nolint:errcheck
	}

	result.OutputPath = contentsPath
	result.Metadata["bodies_fetched"] = fetched
	return result, nil
}

// collectSection fetches every page of one section list. The first page
// reveals the paginator depth; the rest are fetched concurrently and kept in
// page order.
func (c *NewsCollector) collectSection(ctx context.Context, date, section string) ([]naver.Article, error) {
	first, err := c.client.List(ctx, date, section, 1)
	if err != nil {
		return nil, eris.Wrapf(err, "collect: list news section %s", section)
	}

	maxPage := first.MaxPage
	if c.cfg.MaxPages > 0 && maxPage > c.cfg.MaxPages {
		maxPage = c.cfg.MaxPages
	}

	pages := make([][]naver.Article, maxPage)
	pages[0] = first.Articles

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for page := 2; page <= maxPage; page++ {
		g.Go(func() error {
			lp, err := c.client.List(gctx, date, section, page)
			if err != nil {
				return eris.Wrapf(err, "collect: list news section %s page %d", section, page)
			}
			pages[page-1] = lp.Articles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []naver.Article
	for _, pageArticles := range pages {
		out = append(out, pageArticles...)
	}
	c.log.Debug("section listed",
		zap.String("section", section),
		zap.Int("pages", maxPage),
		zap.Int("articles", len(out)),
	)
	return out, nil
}

// fetchBodies fills in Contents for each article in place. A single article
// failing is a warning, not a collect failure.
func (c *NewsCollector) fetchBodies(ctx context.Context, articles []naver.Article, progress bool) (int, error) {
	bar := newProgressBar(progress, len(articles), "fetching article bodies")
	delay := time.Duration(c.cfg.DelayMs) * time.Millisecond

	var fetched int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i := range articles {
		a := &articles[i]
		g.Go(func() error {
			defer tick(bar)
			if err := gctx.Err(); err != nil {
				return err
			}
			sleepJitter(gctx, delay)

			body, err := c.client.Body(gctx, a.URL)
			if err != nil {
				c.log.Warn("article body fetch failed",
					zap.String("url", a.URL),
					zap.Error(err),
				)
				return nil
			}
			a.Contents = body
			atomic.AddInt64(&fetched, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(fetched), nil
}

func articleRows(articles []naver.Article, withContents bool) [][]string {
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		row := []string{
			a.Section, a.SectionName, a.OfficeID, a.ArticleID,
			a.URL, a.Title, a.Press, a.Date,
		}
		if withContents {
			row = append(row, a.Contents)
		}
		rows = append(rows, row)
	}
	return rows
}

// dedupeArticles drops repeats by URL and title, keeping first occurrence.
// Sections overlap when an article is filed under more than one.
func dedupeArticles(articles []naver.Article) []naver.Article {
	seen := make(map[string]struct{}, len(articles))
	out := articles[:0]
	for _, a := range articles {
		key := a.URL + "\x00" + a.Title
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
