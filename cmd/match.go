package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/notify"
	"github.com/bigrise-data/bigrise/internal/pipeline"
)

var (
	matchDate       string
	matchHoldings   string
	matchIndustry   string
	matchOutDir     string
	matchWindow     int
	matchSuggest    bool
	matchNoProgress bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match ETF holdings against industry metadata",
	Long:  "Joins the holdings and industry CSVs by normalized company name and writes the full and recent output pair. Runs standalone: no store, no collect.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if matchWindow > 0 {
			cfg.Match.WindowDays = matchWindow
		}
		if matchSuggest {
			cfg.Match.SuggestUnmatched = true
		}
		if err := cfg.Validate("match"); err != nil {
			return err
		}

		targetDate := matchDate
		if targetDate == "" {
			var err error
			targetDate, err = pipeline.ReferenceDate(cfg.Data.Timezone)
			if err != nil {
				return err
			}
		}

		p, err := pipeline.New(cfg, nil, nil, notify.New(cfg.Notify))
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		if !matchNoProgress {
			bar = progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("matching"),
			)
		}

		result, err := p.Match(ctx, "", pipeline.MatchRequest{
			TargetDate:   targetDate,
			HoldingsPath: matchHoldings,
			IndustryPath: matchIndustry,
			OutDir:       matchOutDir,
			Progress: func(n int) {
				if bar != nil {
					_ = bar.Add(n)
				}
			},
		})
		if err != nil {
			return eris.Wrap(err, "match")
		}
		if bar != nil {
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
		}

		zap.L().Info("match complete",
			zap.Int("holdings", result.Summary.Holdings),
			zap.Int("matched", result.Summary.Matched),
			zap.Int("recent", result.Summary.Recent),
			zap.String("full", result.Summary.FullPath),
			zap.String("recent_file", result.Summary.RecentPath),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(result.Suggestions) > 0 {
			return enc.Encode(struct {
				Summary     any `json:"summary"`
				Suggestions any `json:"suggestions"`
			}{result.Summary, result.Suggestions})
		}
		return enc.Encode(result.Summary)
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchDate, "date", "", "target date YYYYMMDD (default: yesterday)")
	matchCmd.Flags().StringVar(&matchHoldings, "holdings", "", "holdings CSV path (default: collector output for the date)")
	matchCmd.Flags().StringVar(&matchIndustry, "industry", "", "industry CSV path (default: collector output for the date)")
	matchCmd.Flags().StringVar(&matchOutDir, "out-dir", "", "output directory (default from config)")
	matchCmd.Flags().IntVar(&matchWindow, "window", 0, "recent window in days (default from config)")
	matchCmd.Flags().BoolVar(&matchSuggest, "suggest-unmatched", false, "emit fuzzy suggestions for unmatched holdings")
	matchCmd.Flags().BoolVar(&matchNoProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(matchCmd)
}
