// Package gymtest provides scripted environment and policy doubles for
// exercising the training stack without an emulator.
package gymtest

import (
	"github.com/pokered-rl/trainctl/internal/gym"
)

// ScriptedEnv is a deterministic gym.Environment for tests. Episodes
// terminate after EpisodeLen steps; a non-positive EpisodeLen runs
// forever. On the terminal step it reports the configured counters and
// success flag in the step info.
type ScriptedEnv struct {
	EpisodeLen    int
	RewardPerStep float64
	Counters      gym.EpisodeStats
	ReportSuccess bool

	// OmitEpisodeInfo suppresses the episode stats map on termination.
	OmitEpisodeInfo bool

	// StepErr, when set, is returned by every Step call.
	StepErr error

	// StepPanic, when set, makes Step panic with this value.
	StepPanic any

	Seeds       []int64
	Resets      int
	StepsTaken  int
	Closed      bool
	CloseCalled int

	episodeSteps int
}

var _ gym.Environment = (*ScriptedEnv)(nil)

func (e *ScriptedEnv) Reset(seed int64) (gym.Observation, gym.Info, error) {
	e.Resets++
	e.Seeds = append(e.Seeds, seed)
	e.episodeSteps = 0
	return e.observation(), gym.Info{}, nil
}

func (e *ScriptedEnv) Step(action int) (gym.StepResult, error) {
	if e.StepPanic != nil {
		panic(e.StepPanic)
	}
	if e.StepErr != nil {
		return gym.StepResult{}, e.StepErr
	}

	e.StepsTaken++
	e.episodeSteps++

	res := gym.StepResult{
		Obs:    e.observation(),
		Reward: e.RewardPerStep,
		Info:   gym.Info{},
	}

	if e.EpisodeLen > 0 && e.episodeSteps >= e.EpisodeLen {
		res.Terminated = true
		if !e.OmitEpisodeInfo {
			res.Info["episode"] = map[string]any{
				"r":               e.RewardPerStep * float64(e.episodeSteps),
				"l":               e.episodeSteps,
				"battles_started": e.Counters.BattlesStarted,
				"battles_won":     e.Counters.BattlesWon,
				"badges_earned":   e.Counters.BadgesEarned,
				"levels_gained":   e.Counters.LevelsGained,
			}
		}
		res.Info["success"] = e.ReportSuccess
		e.episodeSteps = 0
	}

	return res, nil
}

func (e *ScriptedEnv) Close() error {
	e.Closed = true
	e.CloseCalled++
	return nil
}

func (e *ScriptedEnv) NumActions() int { return 7 }

func (e *ScriptedEnv) observation() gym.Observation {
	return map[string]any{"step": e.StepsTaken}
}
