package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bigrise-data/bigrise/internal/model"
	"github.com/bigrise-data/bigrise/internal/pipeline"
)

var (
	runDate  string
	runOnly  []string
	runForce bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect, match, notify",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Run(ctx, runDate, "cli", pipeline.RunOpts{
			Only:  runOnly,
			Force: runForce,
		})
		if err != nil {
			return eris.Wrap(err, "run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return eris.Wrap(err, "run: encode result")
		}

		if run.Status == model.RunStatusFailed {
			return eris.New("run: " + run.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "target date YYYYMMDD (default: yesterday)")
	runCmd.Flags().StringSliceVar(&runOnly, "only", nil, "restrict the collect phase to the named collectors")
	runCmd.Flags().BoolVar(&runForce, "force", false, "run collectors even if they already ran today")
	rootCmd.AddCommand(runCmd)
}
