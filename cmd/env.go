package main

import (
	"context"
	"time"

	"github.com/bigrise-data/bigrise/internal/collect"
	"github.com/bigrise-data/bigrise/internal/fetcher"
	"github.com/bigrise-data/bigrise/internal/notify"
	"github.com/bigrise-data/bigrise/internal/pipeline"
	"github.com/bigrise-data/bigrise/internal/store"
	"github.com/bigrise-data/bigrise/pkg/bigfinance"
	"github.com/bigrise-data/bigrise/pkg/naver"
	"github.com/bigrise-data/bigrise/pkg/riseetf"
)

// pipelineEnv holds the initialized store, collectors, and pipeline needed
// by the crawl/run/serve/worker commands.
type pipelineEnv struct {
	Store    store.Store
	Registry *collect.Registry
	Engine   *collect.Engine
	Pipeline *pipeline.Pipeline
	Notifier *notify.Notifier
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initClients builds the three site clients on a shared fetcher so the
// per-host rate limits and retry policy apply across collectors.
func initClients() collect.Clients {
	hc := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: 30 * time.Second,
	}).Client()

	return collect.Clients{
		News: naver.NewClient(
			naver.WithBaseURL(cfg.Naver.BaseURL),
			naver.WithHTTPClient(hc),
		),
		RiseETF: riseetf.NewClient(
			riseetf.WithBaseURL(cfg.RiseETF.BaseURL),
			riseetf.WithHTTPClient(hc),
		),
		BigFinance: bigfinance.NewClient(
			cfg.BigFinance.Username,
			cfg.BigFinance.Password,
			bigfinance.WithBaseURL(cfg.BigFinance.BaseURL),
			bigfinance.WithHTTPClient(hc),
		),
	}
}

// initPipeline sets up the store, the collector registry, and the pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	reg := collect.NewRegistry(cfg, initClients())
	engine := collect.NewEngine(st, reg)
	notifier := notify.New(cfg.Notify)

	p, err := pipeline.New(cfg, st, engine, notifier)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{
		Store:    st,
		Registry: reg,
		Engine:   engine,
		Pipeline: p,
		Notifier: notifier,
	}, nil
}
