package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/collect"
	"github.com/bigrise-data/bigrise/internal/pipeline"
)

var (
	crawlDate  string
	crawlOnly  []string
	crawlForce bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the site collectors",
	Long:  "Refreshes the local datasets: Naver Finance news, RISE ETF holdings, and the BigFinance industry tree. Collectors that already ran today are skipped unless --force is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "crawl")
		if err != nil {
			return err
		}
		defer env.Close()

		targetDate := crawlDate
		if targetDate == "" {
			targetDate, err = pipeline.ReferenceDate(cfg.Data.Timezone)
			if err != nil {
				return err
			}
		}

		summary, err := env.Engine.Run(ctx, collect.RunOpts{
			Only:  crawlOnly,
			Force: crawlForce,
			Params: collect.Params{
				TargetDate: targetDate,
				DataDir:    cfg.Data.DataDir,
				KeepTemp:   cfg.Data.KeepTemp,
				Progress:   cfg.Collect.Progress,
			},
		})
		if err != nil {
			return eris.Wrap(err, "crawl")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return eris.Wrap(err, "crawl: encode summary")
		}

		if summary.Failed > 0 {
			zap.L().Warn("some collectors failed", zap.Strings("failed", summary.Failures()))
			return eris.Errorf("crawl: %d collector(s) failed", summary.Failed)
		}
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVar(&crawlDate, "date", "", "target date YYYYMMDD (default: yesterday)")
	crawlCmd.Flags().StringSliceVar(&crawlOnly, "only", nil, "run only the named collectors (news, riseetf, bigfinance)")
	crawlCmd.Flags().BoolVar(&crawlForce, "force", false, "run collectors even if they already ran today")
	rootCmd.AddCommand(crawlCmd)
}
