package rundir

import (
	"encoding/json"
	"os"
)

// Run states as they appear in the status snapshot.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
)

// Snapshot is one status.json document. Progress and throughput are
// pointers because both are null when they cannot be computed.
type Snapshot struct {
	RunName          string             `json:"run_name"`
	Status           string             `json:"status"`
	TimestepsDone    int64              `json:"timesteps_done"`
	TimestepsTotal   int64              `json:"timesteps_total"`
	Progress         *float64           `json:"progress"`
	NumEnvs          int                `json:"num_envs"`
	BatchSize        int                `json:"batch_size"`
	NEpochs          int                `json:"n_epochs"`
	Gamma            float64            `json:"gamma"`
	EntCoef          float64            `json:"ent_coef"`
	RewardScale      float64            `json:"reward_scale"`
	ExploreWeight    float64            `json:"explore_weight"`
	StartTime        float64            `json:"start_time"`
	LastWriteTime    float64            `json:"last_write_time"`
	WallClockSeconds float64            `json:"wall_clock_seconds"`
	Throughput       *float64           `json:"throughput_steps_per_sec"`
	LatestMetrics    map[string]float64 `json:"latest_metrics"`
	LastEval         *EvalRecord        `json:"last_eval,omitempty"`
}

// ReadStatus parses a status snapshot. A missing or malformed file reads
// as nil; a stale or half-written snapshot must never surface as an
// error to the control plane.
func ReadStatus(path string) *Snapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}
	return &snap
}
