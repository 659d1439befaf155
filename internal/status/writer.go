// Package status maintains the status.json snapshot for a training run.
package status

import (
	"time"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/rundir"
	timeutils "github.com/pokered-rl/trainctl/internal/time"
)

// MetricsSource exposes the most recent optimizer metrics. The trainer
// loop implements it; the writer polls it at snapshot time.
type MetricsSource interface {
	LatestMetrics() map[string]float64
}

// Snapshot metric keys worth surfacing; everything else the source
// reports is dropped.
var metricKeys = []string{
	"rollout/ep_rew_mean",
	"rollout/ep_len_mean",
	"train/value_loss",
	"train/policy_gradient_loss",
	"train/entropy_loss",
	"train/approx_kl",
	"train/clip_fraction",
	"train/loss",
	"train/learning_rate",
}

// Writer periodically persists a status snapshot, rate limited to at
// most one write per interval except for the forced writes at training
// start, training end, and evaluation merges. Each writer owns its own
// counters; nothing is shared between runs.
type Writer struct {
	path           string
	totalTimesteps int64
	runName        string
	trainConf      config.TrainConfig
	envConf        config.EnvConfig
	interval       time.Duration
	metrics        MetricsSource

	now func() time.Time

	startTime     time.Time
	lastWrite     time.Time
	lastTimesteps int64
	timesteps     int64
	lastEval      *rundir.EvalRecord
}

// NewWriter builds a status writer. Intervals below one second are
// clamped up to a second so a hot training loop cannot thrash the file.
func NewWriter(path string, totalTimesteps int64, runName string, trainConf config.TrainConfig, envConf config.EnvConfig, interval time.Duration) *Writer {
	if interval < time.Second {
		interval = time.Second
	}
	return &Writer{
		path:           path,
		totalTimesteps: totalTimesteps,
		runName:        runName,
		trainConf:      trainConf,
		envConf:        envConf,
		interval:       interval,
		now:            time.Now,
	}
}

// SetMetricsSource attaches the optimizer-metrics provider.
func (w *Writer) SetMetricsSource(src MetricsSource) {
	w.metrics = src
}

// TrainingStart resets the counters and forces a "running" snapshot.
func (w *Writer) TrainingStart(timesteps int64) error {
	now := w.now()
	w.startTime = now
	w.lastWrite = now
	w.lastTimesteps = timesteps
	w.timesteps = timesteps
	return w.write(now, rundir.StatusRunning, true)
}

// Step writes a "running" snapshot unless one was written within the
// interval.
func (w *Writer) Step(timesteps int64) error {
	w.timesteps = timesteps
	now := w.now()
	if now.Sub(w.lastWrite) < w.interval {
		return nil
	}
	return w.write(now, rundir.StatusRunning, false)
}

// TrainingEnd forces a "finished" snapshot.
func (w *Writer) TrainingEnd(timesteps int64) error {
	w.timesteps = timesteps
	return w.write(w.now(), rundir.StatusFinished, true)
}

// RecordEvalResult merges the newest evaluation into the snapshot and
// forces an immediate write so the control surface sees it right away.
func (w *Writer) RecordEvalResult(rec rundir.EvalRecord) error {
	w.lastEval = &rec
	return w.write(w.now(), rundir.StatusRunning, true)
}

func (w *Writer) write(now time.Time, state string, force bool) error {
	elapsed := now.Sub(w.lastWrite).Seconds()
	if !force && elapsed < w.interval.Seconds() {
		return nil
	}

	stepsDelta := w.timesteps - w.lastTimesteps
	if stepsDelta < 0 {
		stepsDelta = 0
	}
	var throughput *float64
	if elapsed > 0 {
		v := float64(stepsDelta) / elapsed
		throughput = &v
	}
	var progress *float64
	if w.totalTimesteps != 0 {
		v := float64(w.timesteps) / float64(w.totalTimesteps)
		progress = &v
	}

	snap := rundir.Snapshot{
		RunName:          w.runName,
		Status:           state,
		TimestepsDone:    w.timesteps,
		TimestepsTotal:   w.totalTimesteps,
		Progress:         progress,
		NumEnvs:          w.trainConf.NumEnvs,
		BatchSize:        w.trainConf.BatchSize,
		NEpochs:          w.trainConf.NEpochs,
		Gamma:            w.trainConf.Gamma,
		EntCoef:          w.trainConf.EntCoef,
		RewardScale:      w.envConf.RewardScale,
		ExploreWeight:    w.envConf.ExploreWeight,
		StartTime:        timeutils.UnixSeconds(w.startTime),
		LastWriteTime:    timeutils.UnixSeconds(now),
		WallClockSeconds: now.Sub(w.startTime).Seconds(),
		Throughput:       throughput,
		LatestMetrics:    w.latestMetrics(),
		LastEval:         w.lastEval,
	}

	if err := rundir.AtomicWriteJSON(w.path, snap); err != nil {
		return err
	}
	w.lastWrite = now
	w.lastTimesteps = w.timesteps
	return nil
}

func (w *Writer) latestMetrics() map[string]float64 {
	out := map[string]float64{}
	if w.metrics == nil {
		return out
	}
	latest := w.metrics.LatestMetrics()
	for _, key := range metricKeys {
		if v, ok := latest[key]; ok {
			out[key] = v
		}
	}
	return out
}
