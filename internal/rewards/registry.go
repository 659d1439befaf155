package rewards

import (
	"fmt"
	"strings"
)

// Preset builders keyed by name. Kept as constructors so every lookup
// hands out an independent value.
var presets = map[string]func() Config{
	"default":         Default,
	"exploration":     explorationFocused,
	"battle":          battleFocused,
	"milestone":       milestoneFocused,
	"minimal_penalty": minimalPenalty,
}

var presetOrder = []string{"default", "exploration", "battle", "milestone", "minimal_penalty"}

// Preset returns a predefined reward configuration by name.
func Preset(name string) (Config, error) {
	build, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown reward config %q (available: %s)", name, strings.Join(presetOrder, ", "))
	}
	return build(), nil
}

// PresetNames lists the available preset names.
func PresetNames() []string {
	names := make([]string, len(presetOrder))
	copy(names, presetOrder)
	return names
}

func explorationFocused() Config {
	c := Default()
	c.ExplorationNewTile = 2.0
	c.ExplorationRecentTile = 0.5
	c.BattleHPDelta = 0.1
	c.BattleWin = 5.0
	c.MilestoneBadge = 50.0
	c.PenaltyStep = -0.005
	return c
}

func battleFocused() Config {
	c := Default()
	c.ExplorationNewTile = 0.5
	c.BattleHPDelta = 2.0
	c.BattleWin = 50.0
	c.BattleLoss = -10.0
	c.MilestoneLevelUp = 5.0
	c.PenaltyStep = -0.02
	return c
}

func milestoneFocused() Config {
	c := Default()
	c.ExplorationNewTile = 0.5
	c.BattleHPDelta = 0.2
	c.BattleWin = 20.0
	c.MilestoneBadge = 200.0
	c.MilestoneLevelUp = 10.0
	c.MilestoneKeyLocation = 20.0
	c.MilestoneEvent = 10.0
	c.PenaltyStep = -0.005
	return c
}

func minimalPenalty() Config {
	c := Default()
	c.PenaltyStep = 0.0
	c.PenaltyWall = -0.01
	c.PenaltyStuck = -0.01
	return c
}
