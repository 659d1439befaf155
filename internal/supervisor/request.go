package supervisor

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RunRequest is the launch description accepted over the control
// surface. Zero values mean "use the default"; ApplyDefaults fills them
// before validation and launch.
type RunRequest struct {
	Rom             string  `json:"rom"`
	State           string  `json:"state"`
	RunName         string  `json:"run_name"`
	NumEnvs         int     `json:"num_envs" validate:"omitempty,min=1"`
	BatchSize       int     `json:"batch_size" validate:"omitempty,min=1"`
	TotalMultiplier int     `json:"total_multiplier" validate:"omitempty,min=1"`
	Preset          string  `json:"preset,omitempty"`
	Stream          *bool   `json:"stream"`
	Track           bool    `json:"track"`
	CheckpointFreq  int64   `json:"checkpoint_freq,omitempty" validate:"omitempty,min=1"`
	Seed            *int64  `json:"seed,omitempty"`
	StatusInterval  float64 `json:"status_interval" validate:"omitempty,gte=1"`
	EvalEverySteps  int64   `json:"eval_every_steps,omitempty" validate:"omitempty,min=1"`
	EvalEpisodes    int     `json:"eval_episodes" validate:"omitempty,min=1"`
	EvalMaxSteps    int     `json:"eval_max_steps,omitempty" validate:"omitempty,min=1"`
	EvalStream      bool    `json:"eval_stream"`
	Config          string  `json:"config"`
}

// ApplyDefaults fills unset fields with the launch defaults.
func (r *RunRequest) ApplyDefaults() {
	if r.Rom == "" {
		r.Rom = "PokemonRed.gb"
	}
	if r.State == "" {
		r.State = "init.state"
	}
	if r.RunName == "" {
		r.RunName = "ui_run"
	}
	if r.NumEnvs == 0 {
		r.NumEnvs = 8
	}
	if r.BatchSize == 0 {
		r.BatchSize = 256
	}
	if r.TotalMultiplier == 0 {
		r.TotalMultiplier = 1000
	}
	if r.Stream == nil {
		enabled := true
		r.Stream = &enabled
	}
	if r.StatusInterval == 0 {
		r.StatusInterval = 10.0
	}
	if r.EvalEpisodes == 0 {
		r.EvalEpisodes = 2
	}
	if r.Config == "" {
		r.Config = "configs/train_default.json"
	}
}

// Validate checks the request after defaults are applied. The run name
// becomes a directory name, so it must be non-empty and free of path
// separators.
func (r *RunRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid run request: %w", err)
	}

	name := strings.TrimSpace(r.RunName)
	if name == "" {
		return fmt.Errorf("run_name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("run_name must be a plain directory name (got %q)", r.RunName)
	}
	return nil
}
