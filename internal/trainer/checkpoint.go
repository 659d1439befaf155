package trainer

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pokered-rl/trainctl/internal/rundir"
)

// Saver is the slice of Agent the checkpoint callback needs.
type Saver interface {
	Save(path string) error
}

// CheckpointCallback saves a policy artifact every freq vectorized
// steps, named <prefix>_<timesteps>_steps.ckpt.
type CheckpointCallback struct {
	saver  Saver
	dir    string
	prefix string
	freq   int64
	log    *logrus.Logger

	calls int64
}

func NewCheckpointCallback(saver Saver, dir, prefix string, freq int64, log *logrus.Logger) *CheckpointCallback {
	if freq < 1 {
		freq = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CheckpointCallback{saver: saver, dir: dir, prefix: prefix, freq: freq, log: log}
}

func (c *CheckpointCallback) TrainingStart(timesteps int64) error { return nil }

func (c *CheckpointCallback) Step(timesteps int64) error {
	c.calls++
	if c.calls%c.freq != 0 {
		return nil
	}

	path := filepath.Join(c.dir, rundir.CheckpointFileName(c.prefix, timesteps))
	if err := c.saver.Save(path); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	c.log.WithField("path", path).Info("checkpoint saved")
	return nil
}

func (c *CheckpointCallback) TrainingEnd(timesteps int64) error { return nil }
