package mlflow

import (
	"context"
	"fmt"
	"time"

	"github.com/databricks/databricks-sdk-go/apierr"
	"github.com/databricks/databricks-sdk-go/service/ml"
)

type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
	RunStatusKilled   RunStatus = "KILLED"
)

// resolveExperiment returns the ID of the configured experiment,
// creating the experiment when it does not exist yet.
func (c *Client) resolveExperiment(ctx context.Context, name string) (string, error) {
	resp, err := c.client.Experiments.GetByName(ctx, ml.GetByNameRequest{
		ExperimentName: name,
	})
	if err == nil {
		return resp.Experiment.ExperimentId, nil
	}
	if !apierr.IsMissing(err) {
		return "", fmt.Errorf("failed to look up experiment %s: %w", name, err)
	}

	created, err := c.client.Experiments.CreateExperiment(ctx, ml.CreateExperiment{
		Name: name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create experiment %s: %w", name, err)
	}
	return created.ExperimentId, nil
}

// StartRun creates a tracking run under the configured experiment and
// returns its run ID.
func (c *Client) StartRun(ctx context.Context, runName string, tags map[string]string) (string, error) {
	experimentID, err := c.resolveExperiment(ctx, c.config.ExperimentName)
	if err != nil {
		return "", err
	}

	if runName == "" {
		runName = "run-" + time.Now().Format("2006-01-02-15-04-05")
	}

	mlTags := make([]ml.RunTag, 0, len(tags)+1)
	for key, value := range tags {
		mlTags = append(mlTags, ml.RunTag{
			Key:   key,
			Value: value,
		})
	}
	mlTags = append(mlTags, ml.RunTag{
		Key:   "mlflow.runName",
		Value: runName,
	})

	resp, err := c.client.Experiments.CreateRun(ctx, ml.CreateRun{
		ExperimentId: experimentID,
		RunName:      runName,
		StartTime:    time.Now().UnixMilli(),
		Tags:         mlTags,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return resp.Run.Info.RunId, nil
}

// EndRun marks the run terminal with the given status.
func (c *Client) EndRun(ctx context.Context, runID string, status RunStatus) error {
	var mlStatus ml.UpdateRunStatus
	switch status {
	case RunStatusRunning:
		mlStatus = ml.UpdateRunStatusRunning
	case RunStatusFinished:
		mlStatus = ml.UpdateRunStatusFinished
	case RunStatusFailed:
		mlStatus = ml.UpdateRunStatusFailed
	case RunStatusKilled:
		mlStatus = ml.UpdateRunStatusKilled
	default:
		mlStatus = ml.UpdateRunStatusFinished
	}

	updateRun := ml.UpdateRun{
		RunId:  runID,
		Status: mlStatus,
	}
	if status != RunStatusRunning {
		updateRun.EndTime = time.Now().UnixMilli()
	}

	_, err := c.client.Experiments.UpdateRun(ctx, updateRun)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}
