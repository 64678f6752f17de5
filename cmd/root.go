package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bigrise",
	Short: "ETF holdings to industry matching pipeline",
	Long:  "Collects Naver Finance news, RISE ETF holdings, and the BigFinance industry tree, then matches holdings to industry metadata by normalized company name.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
