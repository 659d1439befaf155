package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pokered-rl/trainctl/internal/parser"
)

// DefaultPath is where the training config file is looked up when no
// --config flag is given.
const DefaultPath = "configs/train_default.json"

// EnvConfig carries the emulated-environment settings handed to each
// worker. GBPath, InitState and SessionPath are filled in at run setup,
// not from config files.
type EnvConfig struct {
	Headless       bool    `json:"headless"`
	SaveFinalState bool    `json:"save_final_state"`
	EarlyStop      bool    `json:"early_stop"`
	ActionFreq     int     `json:"action_freq"`
	MaxSteps       int     `json:"max_steps"`
	PrintRewards   bool    `json:"print_rewards"`
	SaveVideo      bool    `json:"save_video"`
	FastVideo      bool    `json:"fast_video"`
	Debug          bool    `json:"debug"`
	RewardScale    float64 `json:"reward_scale"`
	ExploreWeight  float64 `json:"explore_weight"`

	GBPath      string `json:"gb_path,omitempty"`
	InitState   string `json:"init_state,omitempty"`
	SessionPath string `json:"session_path,omitempty"`
}

// TrainConfig carries the optimization settings.
type TrainConfig struct {
	NumEnvs         int     `json:"num_envs"`
	TotalMultiplier int     `json:"total_multiplier"`
	BatchSize       int     `json:"batch_size"`
	NEpochs         int     `json:"n_epochs"`
	Gamma           float64 `json:"gamma"`
	EntCoef         float64 `json:"ent_coef"`
}

// DefaultEnv returns the baseline environment settings.
func DefaultEnv() EnvConfig {
	return EnvConfig{
		Headless:      true,
		ActionFreq:    24,
		MaxSteps:      2048 * 80,
		PrintRewards:  true,
		FastVideo:     true,
		RewardScale:   0.5,
		ExploreWeight: 0.25,
	}
}

// DefaultTrain returns the baseline optimization settings.
func DefaultTrain() TrainConfig {
	return TrainConfig{
		NumEnvs:         16,
		TotalMultiplier: 10000,
		BatchSize:       512,
		NEpochs:         1,
		Gamma:           0.997,
		EntCoef:         0.01,
	}
}

// File is the raw two-section training config document. Sections stay
// generic maps so they can be validated before coercion.
type File struct {
	Env   map[string]any `json:"env"`
	Train map[string]any `json:"train"`
}

// LoadFile reads a JSON or YAML training config. A missing file is not
// an error; it yields an empty document and the defaults apply.
func LoadFile(path string) (File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return File{}, nil
	}

	doc, err := parser.LoadMap(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to load training config: %w", err)
	}

	var file File
	if env, ok := doc["env"].(map[string]any); ok {
		file.Env = env
	}
	if train, ok := doc["train"].(map[string]any); ok {
		file.Train = train
	}
	return file, nil
}

// Apply returns a copy of c with recognized keys from overrides set.
// Unknown keys are ignored.
func (c EnvConfig) Apply(overrides map[string]any) EnvConfig {
	for key, value := range overrides {
		switch key {
		case "headless":
			setBool(&c.Headless, value)
		case "save_final_state":
			setBool(&c.SaveFinalState, value)
		case "early_stop":
			setBool(&c.EarlyStop, value)
		case "action_freq":
			setInt(&c.ActionFreq, value)
		case "max_steps":
			setInt(&c.MaxSteps, value)
		case "print_rewards":
			setBool(&c.PrintRewards, value)
		case "save_video":
			setBool(&c.SaveVideo, value)
		case "fast_video":
			setBool(&c.FastVideo, value)
		case "debug":
			setBool(&c.Debug, value)
		case "reward_scale":
			setFloat(&c.RewardScale, value)
		case "explore_weight":
			setFloat(&c.ExploreWeight, value)
		case "gb_path":
			setString(&c.GBPath, value)
		case "init_state":
			setString(&c.InitState, value)
		case "session_path":
			setString(&c.SessionPath, value)
		}
	}
	return c
}

// Apply returns a copy of c with recognized keys from overrides set.
func (c TrainConfig) Apply(overrides map[string]any) TrainConfig {
	for key, value := range overrides {
		switch key {
		case "num_envs":
			setInt(&c.NumEnvs, value)
		case "total_multiplier":
			setInt(&c.TotalMultiplier, value)
		case "batch_size":
			setInt(&c.BatchSize, value)
		case "n_epochs":
			setInt(&c.NEpochs, value)
		case "gamma":
			setFloat(&c.Gamma, value)
		case "ent_coef":
			setFloat(&c.EntCoef, value)
		}
	}
	return c
}

// Map converts the environment settings to a generic document for
// validation and metadata. Runtime paths appear only once set.
func (c EnvConfig) Map() map[string]any {
	m := map[string]any{
		"headless":         c.Headless,
		"save_final_state": c.SaveFinalState,
		"early_stop":       c.EarlyStop,
		"action_freq":      c.ActionFreq,
		"max_steps":        c.MaxSteps,
		"print_rewards":    c.PrintRewards,
		"save_video":       c.SaveVideo,
		"fast_video":       c.FastVideo,
		"debug":            c.Debug,
		"reward_scale":     c.RewardScale,
		"explore_weight":   c.ExploreWeight,
	}
	if c.GBPath != "" {
		m["gb_path"] = c.GBPath
	}
	if c.InitState != "" {
		m["init_state"] = c.InitState
	}
	if c.SessionPath != "" {
		m["session_path"] = c.SessionPath
	}
	return m
}

// Map converts the optimization settings to a generic document.
func (c TrainConfig) Map() map[string]any {
	return map[string]any{
		"num_envs":         c.NumEnvs,
		"total_multiplier": c.TotalMultiplier,
		"batch_size":       c.BatchSize,
		"n_epochs":         c.NEpochs,
		"gamma":            c.Gamma,
		"ent_coef":         c.EntCoef,
	}
}

// Preset is a GPU sizing shortcut adjusting parallelism and batch size
// together.
type Preset struct {
	NumEnvs   int
	BatchSize int
}

var presets = map[string]Preset{
	"small":  {NumEnvs: 8, BatchSize: 256},
	"medium": {NumEnvs: 16, BatchSize: 512},
	"large":  {NumEnvs: 32, BatchSize: 1024},
}

var presetOrder = []string{"small", "medium", "large"}

// WithPreset applies a named sizing preset, returning an error for
// unknown names.
func (c TrainConfig) WithPreset(name string) (TrainConfig, error) {
	p, ok := presets[name]
	if !ok {
		return c, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(presetOrder, ", "))
	}
	c.NumEnvs = p.NumEnvs
	c.BatchSize = p.BatchSize
	return c, nil
}

// PresetNames lists the sizing presets smallest first.
func PresetNames() []string {
	names := make([]string, len(presetOrder))
	copy(names, presetOrder)
	return names
}

func setBool(dst *bool, value any) {
	if v, ok := value.(bool); ok {
		*dst = v
	}
}

func setString(dst *string, value any) {
	if v, ok := value.(string); ok {
		*dst = v
	}
}

func setInt(dst *int, value any) {
	switch v := value.(type) {
	case int:
		*dst = v
	case int64:
		*dst = int(v)
	case float64:
		*dst = int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			*dst = int(n)
		}
	}
}

func setFloat(dst *float64, value any) {
	switch v := value.(type) {
	case float64:
		*dst = v
	case float32:
		*dst = float64(v)
	case int:
		*dst = float64(v)
	case int64:
		*dst = float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			*dst = f
		}
	}
}
