package curriculum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokered-rl/trainctl/internal/rewards"
)

func TestGetKnownTasks(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			task, err := Get(name)
			require.NoError(t, err)
			assert.Equal(t, name, task.Name)
			assert.NotEmpty(t, task.Description)
			assert.Positive(t, task.MaxSteps)
		})
	}
}

func TestGetUnknownListsNames(t *testing.T) {
	_, err := Get("water_gym")
	require.Error(t, err)
	for _, name := range Names() {
		assert.Contains(t, err.Error(), name)
	}
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	a, err := Get("full_game")
	require.NoError(t, err)
	a.Rewards.BattleWin = -999
	a.MaxSteps = 1

	b, err := Get("full_game")
	require.NoError(t, err)
	assert.NotEqual(t, a.Rewards.BattleWin, b.Rewards.BattleWin)
	assert.NotEqual(t, a.MaxSteps, b.MaxSteps)
}

func TestSuccessConditionIsExplicit(t *testing.T) {
	quest, err := Get("gym_quest")
	require.NoError(t, err)
	assert.True(t, quest.HasSuccessCondition())
	assert.Equal(t, "badge_earned", quest.SuccessCondition)

	// Tasks without one never report success from termination alone.
	free, err := Get("full_game")
	require.NoError(t, err)
	assert.False(t, free.HasSuccessCondition())
}

func TestFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.json")
	doc := `{
		"name": "route_one",
		"description": "Clear Route 1.",
		"max_steps": 4096,
		"reward_preset": "exploration",
		"success_condition": "reached_viridian",
		"rewards": {"battle_win": 1.0, "unknown": 7}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	task, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "route_one", task.Name)
	assert.Equal(t, 4096, task.MaxSteps)
	assert.Equal(t, "reached_viridian", task.SuccessCondition)

	// Preset base with the per-field override applied on top
	base, err := rewards.Preset("exploration")
	require.NoError(t, err)
	assert.Equal(t, 1.0, task.Rewards.BattleWin)
	assert.Equal(t, base.ExplorationNewTile, task.Rewards.ExplorationNewTile)
}

func TestFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.yaml")
	doc := "name: pewter\ndescription: Boulder Badge.\nrewards:\n  milestone_badge: 1000\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	task, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pewter", task.Name)
	assert.Equal(t, DefaultMaxSteps, task.MaxSteps)
	assert.Equal(t, 1000.0, task.Rewards.MilestoneBadge)
}

func TestFromFileRequiresName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"description": "nameless"}`), 0o644))

	_, err := FromFile(path)
	assert.Error(t, err)
}

func TestFromFileUnknownPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "x", "reward_preset": "nope"}`), 0o644))

	_, err := FromFile(path)
	assert.Error(t, err)
}

func TestTaskMap(t *testing.T) {
	quest, err := Get("gym_quest")
	require.NoError(t, err)
	m := quest.Map()
	assert.Equal(t, "gym_quest", m["name"])
	assert.Equal(t, "badge_earned", m["success_condition"])
	assert.NotNil(t, m["reward_config"])

	free, err := Get("full_game")
	require.NoError(t, err)
	assert.Nil(t, free.Map()["success_condition"])
}
