package trainer

import (
	"github.com/sirupsen/logrus"
)

// MetricLogger ships metrics to an experiment-tracking backend.
type MetricLogger interface {
	LogMetrics(step int64, metrics map[string]float64) error
}

// MetricsProvider is where the callback reads the current metrics from,
// normally the loop itself.
type MetricsProvider interface {
	LatestMetrics() map[string]float64
}

// TrackingCallback pushes the latest metrics to a tracking backend on a
// timestep cadence. Tracking failures are logged and dropped; a flaky
// tracking server must not affect training.
type TrackingCallback struct {
	tracker MetricLogger
	source  MetricsProvider
	every   int64
	log     *logrus.Logger

	last int64
}

func NewTrackingCallback(tracker MetricLogger, source MetricsProvider, everySteps int64, log *logrus.Logger) *TrackingCallback {
	if everySteps < 1 {
		everySteps = 10000
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TrackingCallback{tracker: tracker, source: source, every: everySteps, log: log}
}

// SetSource wires the metrics provider after construction, for when the
// callback has to exist before the loop does.
func (t *TrackingCallback) SetSource(source MetricsProvider) {
	t.source = source
}

func (t *TrackingCallback) TrainingStart(timesteps int64) error {
	t.last = timesteps
	return nil
}

func (t *TrackingCallback) Step(timesteps int64) error {
	if timesteps-t.last < t.every {
		return nil
	}
	t.last = timesteps
	t.push(timesteps)
	return nil
}

func (t *TrackingCallback) TrainingEnd(timesteps int64) error {
	t.push(timesteps)
	return nil
}

func (t *TrackingCallback) push(timesteps int64) {
	if t.source == nil {
		return
	}
	metrics := t.source.LatestMetrics()
	if len(metrics) == 0 {
		return
	}
	if err := t.tracker.LogMetrics(timesteps, metrics); err != nil {
		t.log.WithError(err).Warn("failed to log tracking metrics")
	}
}
