package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/workflow"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start a Temporal worker for scheduled daily runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := workflow.Dial(cfg.Workflow)
		if err != nil {
			return err
		}
		defer c.Close()

		activities := workflow.NewActivities(
			cfg, env.Store, env.Registry, env.Engine, env.Pipeline, env.Notifier)

		zap.L().Info("worker starting",
			zap.String("host_port", cfg.Workflow.HostPort),
			zap.String("task_queue", cfg.Workflow.TaskQueue),
		)
		return workflow.RunWorker(c, cfg.Workflow, activities)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
