package rewards

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMapDiscardsUnknownKeys(t *testing.T) {
	c := FromMap(map[string]any{
		"unknown_field": 1,
		"battle_win":    99.0,
	})
	assert.Equal(t, 99.0, c.BattleWin)

	// Everything else keeps the default
	def := Default()
	def.BattleWin = 99.0
	assert.Equal(t, def, c)
}

func TestFromMapEmptyIsDefault(t *testing.T) {
	assert.Equal(t, Default(), FromMap(nil))
	assert.Equal(t, Default(), FromMap(map[string]any{}))
}

func TestFromMapNumericCoercion(t *testing.T) {
	c := FromMap(map[string]any{
		"battle_win":                int(25),
		"milestone_badge":           int64(150),
		"exploration_recent_window": float64(200),
		"enable_battle":             false,
	})
	assert.Equal(t, 25.0, c.BattleWin)
	assert.Equal(t, 150.0, c.MilestoneBadge)
	assert.Equal(t, 200, c.ExplorationRecentWindow)
	assert.False(t, c.EnableBattle)
}

func TestFromMapIgnoresMistypedValues(t *testing.T) {
	c := FromMap(map[string]any{
		"battle_win":    "a lot",
		"enable_battle": 1,
	})
	assert.Equal(t, Default().BattleWin, c.BattleWin)
	assert.True(t, c.EnableBattle)
}

func TestMapRoundTrip(t *testing.T) {
	c := Default()
	c.PenaltyWall = -0.42
	c.EnableLegacyHeal = false
	assert.Equal(t, c, FromMap(c.Map()))
}

func TestPreset(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			c, err := Preset(name)
			require.NoError(t, err)
			assert.NotZero(t, c.ExplorationRecentWindow)
		})
	}

	battle, err := Preset("battle")
	require.NoError(t, err)
	assert.Greater(t, battle.BattleWin, Default().BattleWin)
}

func TestPresetUnknownListsNames(t *testing.T) {
	_, err := Preset("speedrun")
	require.Error(t, err)
	for _, name := range PresetNames() {
		assert.Contains(t, err.Error(), name)
	}
}

func TestPresetReturnsIndependentCopies(t *testing.T) {
	a, err := Preset("default")
	require.NoError(t, err)
	a.BattleWin = -1

	b, err := Preset("default")
	require.NoError(t, err)
	assert.Equal(t, Default().BattleWin, b.BattleWin)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"battle_win": 3.5, "junk": true}`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3.5, c.BattleWin)
	assert.Equal(t, Default().MilestoneBadge, c.MilestoneBadge)
}

func TestWriteFileReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.json")
	c := Default()
	c.RewardScale = 0.25
	require.NoError(t, c.WriteFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}
