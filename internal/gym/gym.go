// Package gym defines the contract between the training stack and the
// emulated game environments. Concrete environments live outside this
// module and register themselves as backends.
package gym

// Observation is whatever the environment emits per step. The training
// stack never inspects it, only hands it to the policy.
type Observation any

// Info carries auxiliary per-step data from the environment.
type Info map[string]any

// StepResult is the outcome of advancing the environment one action.
type StepResult struct {
	Obs        Observation
	Reward     float64
	Terminated bool
	Truncated  bool
	Info       Info
}

// Environment is a single emulated game instance. Reset with a negative
// seed keeps the current RNG state. Implementations are not expected to
// be goroutine safe; callers serialize access per instance.
type Environment interface {
	Reset(seed int64) (Observation, Info, error)
	Step(action int) (StepResult, error)
	Close() error
	NumActions() int
}

// Episode returns the end-of-episode stats when the environment reported
// them on its final step.
func (i Info) Episode() (EpisodeStats, bool) {
	raw, ok := i["episode"].(map[string]any)
	if !ok {
		return EpisodeStats{}, false
	}
	return EpisodeStats{
		Reward:         floatField(raw, "r"),
		Length:         floatField(raw, "l"),
		BattlesStarted: floatField(raw, "battles_started"),
		BattlesWon:     floatField(raw, "battles_won"),
		BadgesEarned:   floatField(raw, "badges_earned"),
		LevelsGained:   floatField(raw, "levels_gained"),
	}, true
}

// Success reports the environment's explicit success flag. Absent means
// false; termination alone never implies success.
func (i Info) Success() bool {
	v, _ := i["success"].(bool)
	return v
}

// EpisodeStats are the totals an environment reports when an episode
// ends: the episode return and length plus the game-progress counters.
// Missing fields read as zero.
type EpisodeStats struct {
	Reward         float64
	Length         float64
	BattlesStarted float64
	BattlesWon     float64
	BadgesEarned   float64
	LevelsGained   float64
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
