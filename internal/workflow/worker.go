package workflow

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/bigrise-data/bigrise/internal/config"
)

// Dial connects to the Temporal server named in the config.
func Dial(cfg config.WorkflowConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, eris.Wrap(err, "workflow: dial temporal")
	}
	return c, nil
}

// RunWorker registers the workflow and activities and serves the task queue
// until interrupted.
func RunWorker(c client.Client, cfg config.WorkflowConfig, a *Activities) error {
	w := worker.New(c, cfg.TaskQueue, worker.Options{})
	w.RegisterWorkflow(DailyRun)
	w.RegisterActivity(a)

	if err := w.Run(worker.InterruptCh()); err != nil {
		return eris.Wrap(err, "workflow: worker stopped")
	}
	return nil
}

// Submit starts a DailyRun and returns the workflow ID. The ID carries the
// target date so resubmitting the same day collides instead of double-running.
func Submit(ctx context.Context, c client.Client, cfg config.WorkflowConfig, in DailyRunInput) (string, error) {
	id := "bigrise-daily"
	if in.TargetDate != "" {
		id += "-" + in.TargetDate
	}

	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: cfg.TaskQueue,
	}, DailyRun, in)
	if err != nil {
		return "", eris.Wrap(err, "workflow: start daily run")
	}
	return we.GetID(), nil
}
