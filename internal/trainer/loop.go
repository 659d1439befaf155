package trainer

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pokered-rl/trainctl/internal/gym"
)

// epStatsWindow is how many recent episodes feed the rollout means.
const epStatsWindow = 100

// LoopConfig wires up a training loop.
type LoopConfig struct {
	Agent Agent
	Envs  []gym.Environment

	// NSteps is the rollout length collected per environment between
	// policy updates.
	NSteps int

	// Seed offsets the initial per-environment reset seeds (seed+rank).
	Seed int64

	// StartTimesteps primes the global counter when resuming.
	StartTimesteps int64

	// FinalPath, when set, receives the final artifact on natural
	// completion. Interrupted runs never write it.
	FinalPath string

	Callbacks []Callback
	Logger    *logrus.Logger
}

// Loop owns the vectorized environments and the global timestep
// counter, collects rollouts into the buffer, and delegates policy
// updates to the agent. Callbacks run synchronously on the loop
// goroutine after every vectorized step.
type Loop struct {
	agent     Agent
	envs      []gym.Environment
	nSteps    int
	seed      int64
	finalPath string
	callbacks CallbackList
	log       *logrus.Logger

	buf       *Buffer
	obs       []gym.Observation
	timesteps int64

	latest    map[string]float64
	epRewards []float64
	epLengths []float64
	epPos     int
	epCount   int
}

func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	if len(cfg.Envs) == 0 {
		return nil, fmt.Errorf("at least one environment is required")
	}
	if cfg.NSteps < 1 {
		return nil, fmt.Errorf("n_steps must be >= 1 (got %d)", cfg.NSteps)
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loop{
		agent:     cfg.Agent,
		envs:      cfg.Envs,
		nSteps:    cfg.NSteps,
		seed:      cfg.Seed,
		finalPath: cfg.FinalPath,
		callbacks: CallbackList(cfg.Callbacks),
		log:       log,
		buf:       NewBuffer(cfg.NSteps, len(cfg.Envs)),
		obs:       make([]gym.Observation, len(cfg.Envs)),
		timesteps: cfg.StartTimesteps,
		latest:    make(map[string]float64),
		epRewards: make([]float64, 0, epStatsWindow),
		epLengths: make([]float64, 0, epStatsWindow),
	}, nil
}

// Timesteps is the global environment-step counter (each vectorized
// step advances it by the environment count).
func (l *Loop) Timesteps() int64 {
	return l.timesteps
}

// LatestMetrics implements the status writer's metrics source: the most
// recent optimizer metrics plus the rolling episode means.
func (l *Loop) LatestMetrics() map[string]float64 {
	out := make(map[string]float64, len(l.latest)+2)
	for k, v := range l.latest {
		out[k] = v
	}
	if l.epCount > 0 {
		out["rollout/ep_rew_mean"] = mean(l.epRewards)
		out["rollout/ep_len_mean"] = mean(l.epLengths)
	}
	return out
}

// Run trains until the global counter reaches totalTimesteps or the
// context is cancelled. Cancellation returns the context error without
// the final artifact or the end callbacks, leaving the last snapshot as
// the record of the interrupted run.
func (l *Loop) Run(ctx context.Context, totalTimesteps int64) error {
	l.buf.Resize(l.nSteps, len(l.envs))

	for i, env := range l.envs {
		obs, _, err := env.Reset(l.seed + int64(i))
		if err != nil {
			return fmt.Errorf("failed to reset env %d: %w", i, err)
		}
		l.obs[i] = obs
	}

	if err := l.callbacks.TrainingStart(l.timesteps); err != nil {
		return err
	}

	for l.timesteps < totalTimesteps {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.collect(ctx); err != nil {
			return err
		}

		metrics, err := l.agent.Update(ctx, l.buf)
		if err != nil {
			return fmt.Errorf("failed to update policy: %w", err)
		}
		l.recordMetrics(metrics)

		l.log.WithFields(logrus.Fields{
			"timesteps": l.timesteps,
			"total":     totalTimesteps,
		}).Debug("rollout complete")
	}

	if l.finalPath != "" {
		if err := l.agent.Save(l.finalPath); err != nil {
			return fmt.Errorf("failed to save final model: %w", err)
		}
	}

	return l.callbacks.TrainingEnd(l.timesteps)
}

// collect fills one rollout, stepping all environments concurrently and
// auto-resetting finished episodes.
func (l *Loop) collect(ctx context.Context) error {
	l.buf.Reset()

	numEnvs := len(l.envs)
	actions := make([]int, numEnvs)
	results := make([]gym.StepResult, numEnvs)
	stepErrs := make([]error, numEnvs)

	for step := 0; step < l.nSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i := range l.envs {
			action, err := l.agent.Predict(l.obs[i], false)
			if err != nil {
				return fmt.Errorf("failed to predict action for env %d: %w", i, err)
			}
			actions[i] = action
		}

		var wg sync.WaitGroup
		for i := range l.envs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], stepErrs[i] = l.envs[i].Step(actions[i])
			}(i)
		}
		wg.Wait()

		row := make([]Transition, numEnvs)
		for i := range l.envs {
			if stepErrs[i] != nil {
				return fmt.Errorf("env %d step failed: %w", i, stepErrs[i])
			}
			res := results[i]
			row[i] = Transition{
				Obs:        res.Obs,
				Action:     actions[i],
				Reward:     res.Reward,
				Terminated: res.Terminated,
				Truncated:  res.Truncated,
			}
			l.obs[i] = res.Obs

			if res.Terminated || res.Truncated {
				if stats, ok := res.Info.Episode(); ok {
					l.recordEpisode(stats)
				}
				obs, _, err := l.envs[i].Reset(-1)
				if err != nil {
					return fmt.Errorf("failed to reset env %d: %w", i, err)
				}
				l.obs[i] = obs
			}
		}

		if err := l.buf.Add(row); err != nil {
			return err
		}
		l.timesteps += int64(numEnvs)

		if err := l.callbacks.Step(l.timesteps); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) recordEpisode(stats gym.EpisodeStats) {
	if len(l.epRewards) < epStatsWindow {
		l.epRewards = append(l.epRewards, stats.Reward)
		l.epLengths = append(l.epLengths, stats.Length)
	} else {
		l.epRewards[l.epPos] = stats.Reward
		l.epLengths[l.epPos] = stats.Length
		l.epPos = (l.epPos + 1) % epStatsWindow
	}
	l.epCount++
}

func (l *Loop) recordMetrics(metrics map[string]float64) {
	for k, v := range metrics {
		l.latest[k] = v
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
