package curriculum

import (
	"fmt"

	"github.com/pokered-rl/trainctl/internal/parser"
	"github.com/pokered-rl/trainctl/internal/rewards"
)

// DefaultMaxSteps is the episode cap used when a task does not set one.
const DefaultMaxSteps = 163840

// Task describes a focused training scenario: its reward shaping, the
// episode cap, an optional starting save-state, and optional termination
// and success condition tags interpreted by the environment.
//
// Success is a capability of its own. A task without a success condition
// never reports success from termination alone; evaluation takes the
// environment's explicit success flag as the only source.
type Task struct {
	Name        string
	Description string

	Rewards  rewards.Config
	MaxSteps int

	// Optional starting state; empty means the environment default.
	StartStatePath string

	TerminationCondition string
	SuccessCondition     string
}

// HasSuccessCondition reports whether the task defines an explicit
// success condition for evaluation.
func (t Task) HasSuccessCondition() bool {
	return t.SuccessCondition != ""
}

// Map converts the task to a generic document for JSON serialization.
func (t Task) Map() map[string]any {
	var statePath any
	if t.StartStatePath != "" {
		statePath = t.StartStatePath
	}
	var termination any
	if t.TerminationCondition != "" {
		termination = t.TerminationCondition
	}
	var success any
	if t.SuccessCondition != "" {
		success = t.SuccessCondition
	}
	return map[string]any{
		"name":                  t.Name,
		"description":           t.Description,
		"reward_config":         t.Rewards.Map(),
		"max_steps":             t.MaxSteps,
		"start_state_path":      statePath,
		"termination_condition": termination,
		"success_condition":     success,
	}
}

// FromFile loads a user-authored task document (JSON or YAML) and merges
// it over the code defaults: the reward preset (or the default config)
// first, then any per-field reward overrides.
func FromFile(path string) (Task, error) {
	file, err := parser.LoadTaskFile(path)
	if err != nil {
		return Task{}, err
	}
	if file.Name == "" {
		return Task{}, fmt.Errorf("task file %s has no name", path)
	}

	base := rewards.Default()
	if file.RewardPreset != "" {
		base, err = rewards.Preset(file.RewardPreset)
		if err != nil {
			return Task{}, fmt.Errorf("task file %s: %w", path, err)
		}
	}

	task := Task{
		Name:                 file.Name,
		Description:          file.Description,
		Rewards:              base.Apply(file.Rewards),
		MaxSteps:             DefaultMaxSteps,
		StartStatePath:       file.StartState,
		TerminationCondition: file.TerminationCondition,
		SuccessCondition:     file.SuccessCondition,
	}
	if file.MaxSteps != nil && *file.MaxSteps > 0 {
		task.MaxSteps = *file.MaxSteps
	}
	return task, nil
}
