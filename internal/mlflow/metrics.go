package mlflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/databricks/databricks-sdk-go/service/ml"
)

func (c *Client) LogMetric(ctx context.Context, runID string, key string, value float64, timestamp *time.Time, step *int64) error {
	logMetric := ml.LogMetric{
		RunId: runID,
		Key:   key,
		Value: value,
	}

	if timestamp != nil {
		logMetric.Timestamp = timestamp.UnixMilli()
	} else {
		logMetric.Timestamp = time.Now().UnixMilli()
	}

	if step != nil {
		logMetric.Step = *step
	}

	err := c.client.Experiments.LogMetric(ctx, logMetric)
	if err != nil {
		return fmt.Errorf("failed to log metric %s: %w", key, err)
	}

	return nil
}

// RunLogger binds the client to a single run so the training loop can
// push metrics without knowing about experiments or run IDs.
type RunLogger struct {
	client *Client
	runID  string
}

func (c *Client) RunLogger(runID string) *RunLogger {
	return &RunLogger{client: c, runID: runID}
}

// LogMetrics records one value per key at the given step, in sorted key
// order.
func (l *RunLogger) LogMetrics(step int64, metrics map[string]float64) error {
	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ctx := context.Background()
	for _, key := range keys {
		if err := l.client.LogMetric(ctx, l.runID, key, metrics[key], nil, &step); err != nil {
			return err
		}
	}
	return nil
}
