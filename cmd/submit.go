package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigrise-data/bigrise/internal/workflow"
)

var (
	submitDate  string
	submitOnly  []string
	submitForce bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a daily run workflow to Temporal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		c, err := workflow.Dial(cfg.Workflow)
		if err != nil {
			return err
		}
		defer c.Close()

		id, err := workflow.Submit(ctx, c, cfg.Workflow, workflow.DailyRunInput{
			TargetDate: submitDate,
			Only:       submitOnly,
			Force:      submitForce,
		})
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitDate, "date", "", "target date YYYYMMDD (default: yesterday, resolved by the worker)")
	submitCmd.Flags().StringSliceVar(&submitOnly, "only", nil, "restrict the collect fan-out to the named collectors")
	submitCmd.Flags().BoolVar(&submitForce, "force", false, "run collectors even if they already ran today")
	rootCmd.AddCommand(submitCmd)
}
