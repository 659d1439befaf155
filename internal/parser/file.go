package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TaskFile is the on-disk form of a user-authored curriculum task.
// Reward values are kept as a raw map so partial overrides merge onto
// the chosen preset's defaults.
type TaskFile struct {
	Name                 string         `json:"name" yaml:"name"`
	Description          string         `json:"description" yaml:"description"`
	MaxSteps             *int           `json:"max_steps" yaml:"max_steps"`
	StartState           string         `json:"start_state" yaml:"start_state"`
	TerminationCondition string         `json:"termination_condition" yaml:"termination_condition"`
	SuccessCondition     string         `json:"success_condition" yaml:"success_condition"`
	RewardPreset         string         `json:"reward_preset" yaml:"reward_preset"`
	Rewards              map[string]any `json:"rewards" yaml:"rewards"`
}

// LoadTaskFile parses a task file, choosing the format from the extension.
func LoadTaskFile(path string) (*TaskFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLTask(f)
	default:
		return ParseJSONTask(f)
	}
}

// LoadMap parses a JSON or YAML file into a generic map, choosing the
// format from the extension.
func LoadMap(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLMap(f)
	default:
		return ParseJSONMap(f)
	}
}
