package curriculum

import (
	"fmt"
	"strings"

	"github.com/pokered-rl/trainctl/internal/rewards"
)

var tasks = map[string]func() Task{
	"exploration_basic": explorationBasic,
	"battle_training":   battleTraining,
	"gym_quest":         gymQuest,
	"early_game":        earlyGame,
	"full_game":         fullGame,
	"full_game_shaped":  fullGameShaped,
}

var taskOrder = []string{
	"exploration_basic",
	"battle_training",
	"gym_quest",
	"early_game",
	"full_game",
	"full_game_shaped",
}

// Get returns a task configuration by name. Every call hands out an
// independent copy.
func Get(name string) (Task, error) {
	build, ok := tasks[name]
	if !ok {
		return Task{}, fmt.Errorf("unknown task %q (available: %s)", name, strings.Join(taskOrder, ", "))
	}
	return build(), nil
}

// Names lists the registered task names in definition order.
func Names() []string {
	names := make([]string, len(taskOrder))
	copy(names, taskOrder)
	return names
}

// All returns every registered task in definition order.
func All() []Task {
	out := make([]Task, 0, len(taskOrder))
	for _, name := range taskOrder {
		out = append(out, tasks[name]())
	}
	return out
}

// Explore Pallet Town and Route 1, heavy new-tile rewards.
func explorationBasic() Task {
	r := rewards.Default()
	r.ExplorationNewTile = 5.0
	r.ExplorationRecentTile = 0.5
	r.BattleHPDelta = 0.0
	r.BattleWin = 0.0
	r.BattleLoss = 0.0
	r.MilestoneBadge = 50.0
	r.MilestoneLevelUp = 1.0
	r.MilestoneKeyLocation = 20.0
	r.MilestoneEvent = 2.0
	r.PenaltyStep = -0.001
	r.PenaltyWall = -0.05
	r.PenaltyStuck = -0.1
	return Task{
		Name:        "exploration_basic",
		Description: "Explore Pallet Town and Route 1. Focus on discovering new tiles.",
		Rewards:     r,
		MaxSteps:    2048 * 40,
	}
}

// Win battles while minimizing HP loss.
func battleTraining() Task {
	r := rewards.Default()
	r.ExplorationNewTile = 0.5
	r.ExplorationRecentTile = 0.0
	r.BattleHPDelta = 5.0
	r.BattleWin = 100.0
	r.BattleLoss = -20.0
	r.MilestoneBadge = 100.0
	r.MilestoneLevelUp = 10.0
	r.MilestoneKeyLocation = 5.0
	r.MilestoneEvent = 2.0
	r.PenaltyStep = -0.005
	r.PenaltyWall = -0.05
	r.PenaltyStuck = -0.2
	return Task{
		Name:        "battle_training",
		Description: "Train battle skills. Win battles while minimizing HP loss.",
		Rewards:     r,
		MaxSteps:    2048 * 60,
	}
}

// Reach Pewter City Gym and earn the Boulder Badge. The only built-in
// task with termination and success conditions.
func gymQuest() Task {
	r := rewards.Default()
	r.ExplorationNewTile = 2.0
	r.ExplorationRecentTile = 0.2
	r.BattleHPDelta = 2.0
	r.BattleWin = 50.0
	r.BattleLoss = -10.0
	r.MilestoneBadge = 500.0
	r.MilestoneLevelUp = 5.0
	r.MilestoneKeyLocation = 30.0
	r.MilestoneEvent = 5.0
	r.PenaltyStep = -0.002
	r.PenaltyWall = -0.05
	r.PenaltyStuck = -0.1
	return Task{
		Name:                 "gym_quest",
		Description:          "Navigate to Pewter City Gym and earn the Boulder Badge.",
		Rewards:              r,
		MaxSteps:             2048 * 120,
		TerminationCondition: "badge_earned",
		SuccessCondition:     "badge_earned",
	}
}

func earlyGame() Task {
	r := rewards.Default()
	r.ExplorationNewTile = 2.0
	r.ExplorationRecentTile = 0.3
	r.BattleHPDelta = 1.0
	r.BattleWin = 30.0
	r.BattleLoss = -5.0
	r.MilestoneBadge = 300.0
	r.MilestoneLevelUp = 3.0
	r.MilestoneKeyLocation = 20.0
	r.MilestoneEvent = 5.0
	r.PenaltyStep = -0.002
	r.PenaltyWall = -0.05
	r.PenaltyStuck = -0.1
	return Task{
		Name:        "early_game",
		Description: "Complete early game: Pallet Town -> Viridian -> Pewter City -> Boulder Badge.",
		Rewards:     r,
		MaxSteps:    2048 * 150,
	}
}

func fullGame() Task {
	r := rewards.Default()
	r.ExplorationNewTile = 1.0
	r.ExplorationRecentTile = 0.1
	r.BattleHPDelta = 0.5
	r.BattleWin = 20.0
	r.BattleLoss = -5.0
	r.MilestoneBadge = 200.0
	r.MilestoneLevelUp = 2.0
	r.MilestoneKeyLocation = 10.0
	r.MilestoneEvent = 4.0
	r.PenaltyStep = -0.001
	r.PenaltyWall = -0.05
	r.PenaltyStuck = -0.05
	r.RewardScale = 0.5
	return Task{
		Name:        "full_game",
		Description: "Full game playthrough. Explore Kanto, earn all badges, defeat Elite Four.",
		Rewards:     r,
		MaxSteps:    2048 * 200,
	}
}

func fullGameShaped() Task {
	r := rewards.Default()
	r.ExplorationNewTile = 2.0
	r.ExplorationRecentTile = 0.2
	r.BattleHPDelta = 1.0
	r.BattleWin = 50.0
	r.BattleLoss = -10.0
	r.MilestoneBadge = 300.0
	r.MilestoneLevelUp = 5.0
	r.MilestoneKeyLocation = 20.0
	r.MilestoneEvent = 8.0
	r.PenaltyStep = -0.005
	r.PenaltyWall = -0.1
	r.PenaltyStuck = -0.2
	return Task{
		Name:        "full_game_shaped",
		Description: "Full game with aggressive reward shaping for faster learning.",
		Rewards:     r,
		MaxSteps:    2048 * 200,
	}
}
