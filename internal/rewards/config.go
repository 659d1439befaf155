package rewards

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pokered-rl/trainctl/internal/parser"
)

// Config holds the reward shaping coefficients for an environment.
// Components break down into exploration (discovering tiles), battle
// (HP management and outcomes), milestones (badges, levels, events)
// and penalties (step cost, walls, getting stuck).
type Config struct {
	// Exploration
	ExplorationNewTile      float64 `json:"exploration_new_tile"`
	ExplorationRecentTile   float64 `json:"exploration_recent_tile"`
	ExplorationRecentWindow int     `json:"exploration_recent_window"`

	// Battle
	BattleHPDelta float64 `json:"battle_hp_delta"`
	BattleWin     float64 `json:"battle_win"`
	BattleLoss    float64 `json:"battle_loss"`

	// Milestones
	MilestoneBadge       float64 `json:"milestone_badge"`
	MilestoneLevelUp     float64 `json:"milestone_level_up"`
	MilestoneKeyLocation float64 `json:"milestone_key_location"`
	MilestoneEvent       float64 `json:"milestone_event"`

	// Penalties
	PenaltyStep  float64 `json:"penalty_step"`
	PenaltyWall  float64 `json:"penalty_wall"`
	PenaltyStuck float64 `json:"penalty_stuck"`

	// Legacy healing reward and the global scale multiplier
	LegacyHeal  float64 `json:"legacy_heal"`
	RewardScale float64 `json:"reward_scale"`

	// Component toggles
	EnableExploration bool `json:"enable_exploration"`
	EnableBattle      bool `json:"enable_battle"`
	EnableMilestone   bool `json:"enable_milestone"`
	EnablePenalty     bool `json:"enable_penalty"`
	EnableLegacyHeal  bool `json:"enable_legacy_heal"`
}

// Default returns the balanced baseline configuration.
func Default() Config {
	return Config{
		ExplorationNewTile:      1.0,
		ExplorationRecentTile:   0.1,
		ExplorationRecentWindow: 100,
		BattleHPDelta:           0.5,
		BattleWin:               10.0,
		BattleLoss:              -5.0,
		MilestoneBadge:          100.0,
		MilestoneLevelUp:        1.0,
		MilestoneKeyLocation:    5.0,
		MilestoneEvent:          4.0,
		PenaltyStep:             -0.01,
		PenaltyWall:             -0.1,
		PenaltyStuck:            -0.05,
		LegacyHeal:              10.0,
		RewardScale:             1.0,
		EnableExploration:       true,
		EnableBattle:            true,
		EnableMilestone:         true,
		EnablePenalty:           true,
		EnableLegacyHeal:        true,
	}
}

// FromMap builds a configuration from a generic document, starting from
// the defaults. Keys that are not reward fields are ignored so documents
// from older or newer writers still load.
func FromMap(overrides map[string]any) Config {
	return Default().Apply(overrides)
}

// Apply returns a copy of c with the recognized keys from overrides set.
func (c Config) Apply(overrides map[string]any) Config {
	for key, value := range overrides {
		c.set(key, value)
	}
	return c
}

func (c *Config) set(key string, value any) {
	switch key {
	case "exploration_new_tile":
		setFloat(&c.ExplorationNewTile, value)
	case "exploration_recent_tile":
		setFloat(&c.ExplorationRecentTile, value)
	case "exploration_recent_window":
		setInt(&c.ExplorationRecentWindow, value)
	case "battle_hp_delta":
		setFloat(&c.BattleHPDelta, value)
	case "battle_win":
		setFloat(&c.BattleWin, value)
	case "battle_loss":
		setFloat(&c.BattleLoss, value)
	case "milestone_badge":
		setFloat(&c.MilestoneBadge, value)
	case "milestone_level_up":
		setFloat(&c.MilestoneLevelUp, value)
	case "milestone_key_location":
		setFloat(&c.MilestoneKeyLocation, value)
	case "milestone_event":
		setFloat(&c.MilestoneEvent, value)
	case "penalty_step":
		setFloat(&c.PenaltyStep, value)
	case "penalty_wall":
		setFloat(&c.PenaltyWall, value)
	case "penalty_stuck":
		setFloat(&c.PenaltyStuck, value)
	case "legacy_heal":
		setFloat(&c.LegacyHeal, value)
	case "reward_scale":
		setFloat(&c.RewardScale, value)
	case "enable_exploration":
		setBool(&c.EnableExploration, value)
	case "enable_battle":
		setBool(&c.EnableBattle, value)
	case "enable_milestone":
		setBool(&c.EnableMilestone, value)
	case "enable_penalty":
		setBool(&c.EnablePenalty, value)
	case "enable_legacy_heal":
		setBool(&c.EnableLegacyHeal, value)
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

func setBool(dst *bool, value any) {
	if v, ok := value.(bool); ok {
		*dst = v
	}
}

// Map converts the configuration to a generic document, the inverse of
// FromMap.
func (c Config) Map() map[string]any {
	return map[string]any{
		"exploration_new_tile":      c.ExplorationNewTile,
		"exploration_recent_tile":   c.ExplorationRecentTile,
		"exploration_recent_window": c.ExplorationRecentWindow,
		"battle_hp_delta":           c.BattleHPDelta,
		"battle_win":                c.BattleWin,
		"battle_loss":               c.BattleLoss,
		"milestone_badge":           c.MilestoneBadge,
		"milestone_level_up":        c.MilestoneLevelUp,
		"milestone_key_location":    c.MilestoneKeyLocation,
		"milestone_event":           c.MilestoneEvent,
		"penalty_step":              c.PenaltyStep,
		"penalty_wall":              c.PenaltyWall,
		"penalty_stuck":             c.PenaltyStuck,
		"legacy_heal":               c.LegacyHeal,
		"reward_scale":              c.RewardScale,
		"enable_exploration":        c.EnableExploration,
		"enable_battle":             c.EnableBattle,
		"enable_milestone":          c.EnableMilestone,
		"enable_penalty":            c.EnablePenalty,
		"enable_legacy_heal":        c.EnableLegacyHeal,
	}
}

// LoadFile reads a JSON or YAML reward document, applying it on top of
// the defaults.
func LoadFile(path string) (Config, error) {
	m, err := parser.LoadMap(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load reward config: %w", err)
	}
	return FromMap(m), nil
}

// WriteFile saves the configuration as indented JSON.
func (c Config) WriteFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reward config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write reward config: %w", err)
	}
	return nil
}
