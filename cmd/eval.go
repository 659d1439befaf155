package cmd

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/gym"
	"github.com/pokered-rl/trainctl/internal/rewards"
	"github.com/pokered-rl/trainctl/internal/rundir"
	timeutils "github.com/pokered-rl/trainctl/internal/time"
	"github.com/pokered-rl/trainctl/internal/trainer"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a checkpoint",
	Long: `Run deterministic evaluation episodes against a saved checkpoint and
report per-episode and aggregate statistics. Results are written as a
JSON document next to the checkpoint unless --output points elsewhere.`,
	Example: `  # Five deterministic episodes against a checkpoint
  trainctl eval --checkpoint runs/poke_run/poke_81920_steps.ckpt --episodes 5

  # Cap episode length and keep the summary in a chosen file
  trainctl eval --checkpoint final.ckpt --max-steps 4096 --output eval.json`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().String("checkpoint", "", "Checkpoint to evaluate (required)")
	evalCmd.Flags().String("config", config.DefaultPath, "Path to train config JSON/YAML")
	evalCmd.Flags().String("rom", "PokemonRed.gb", "Path to Pokemon Red ROM")
	evalCmd.Flags().String("state", "init.state", "Initial save state path")
	evalCmd.Flags().String("task", "", "Curriculum task name or task file path")
	evalCmd.Flags().String("env-backend", "", "Environment backend (default: the only registered one)")
	evalCmd.Flags().String("algo", "", "Algorithm backend (default: the only registered one)")
	evalCmd.Flags().Int("episodes", 5, "Number of evaluation episodes")
	evalCmd.Flags().Int("max-steps", 0, "Step cap per episode (0 = episode cap)")
	evalCmd.Flags().Int64("seed", 0, "Base evaluation seed")
	evalCmd.Flags().String("output", "", "Results file (default eval_results_<timestamp>.json beside the checkpoint)")
	evalCmd.Flags().Bool("trajectories", false, "Record per-step trajectories in the results file")
	evalCmd.MarkFlagRequired("checkpoint")
}

// EpisodeResult is a single evaluation episode in the results document.
type EpisodeResult struct {
	Episode    int              `json:"episode"`
	Seed       int64            `json:"seed"`
	Reward     float64          `json:"reward"`
	Length     int              `json:"length"`
	Truncated  bool             `json:"truncated"`
	Success    bool             `json:"success"`
	Trajectory []TrajectoryStep `json:"trajectory,omitempty"`
}

// TrajectoryStep is one recorded step when --trajectories is set.
type TrajectoryStep struct {
	Action int     `json:"action"`
	Reward float64 `json:"reward"`
}

// EvalSummary is the aggregate section of the results document.
type EvalSummary struct {
	Checkpoint  string  `json:"checkpoint"`
	Episodes    int     `json:"episodes"`
	MeanReward  float64 `json:"mean_reward"`
	StdReward   float64 `json:"std_reward"`
	MinReward   float64 `json:"min_reward"`
	MaxReward   float64 `json:"max_reward"`
	MeanLength  float64 `json:"mean_length"`
	SuccessRate float64 `json:"success_rate"`
	Timestamp   float64 `json:"timestamp"`
}

// EvalResults is the full document written after an eval command.
type EvalResults struct {
	Summary  EvalSummary     `json:"summary"`
	Episodes []EpisodeResult `json:"episode_results"`
}

func runEval(cmd *cobra.Command, args []string) error {
	checkpoint, _ := cmd.Flags().GetString("checkpoint")
	configPath, _ := cmd.Flags().GetString("config")
	romPath, _ := cmd.Flags().GetString("rom")
	statePath, _ := cmd.Flags().GetString("state")
	taskFlag, _ := cmd.Flags().GetString("task")
	envBackendFlag, _ := cmd.Flags().GetString("env-backend")
	algoFlag, _ := cmd.Flags().GetString("algo")
	episodes, _ := cmd.Flags().GetInt("episodes")
	maxSteps, _ := cmd.Flags().GetInt("max-steps")
	seed, _ := cmd.Flags().GetInt64("seed")
	output, _ := cmd.Flags().GetString("output")
	trajectories, _ := cmd.Flags().GetBool("trajectories")

	if episodes < 1 {
		episodes = 1
	}

	if err := checkFiles(
		pathCheck{label: "checkpoint", path: checkpoint},
		pathCheck{label: "ROM", path: romPath},
		pathCheck{label: "state file", path: statePath},
	); err != nil {
		return err
	}

	envBackend, err := resolveEnvBackend(envBackendFlag)
	if err != nil {
		return err
	}
	algo, err := resolveAlgo(algoFlag)
	if err != nil {
		return err
	}

	file, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	envConf := config.DefaultEnv().Apply(file.Env)
	trainConf := config.DefaultTrain().Apply(file.Train)
	envConf.GBPath = romPath
	envConf.InitState = statePath

	rew := rewards.Default()
	task, err := resolveOptionalTask(taskFlag)
	if err != nil {
		return err
	}
	if task != nil {
		rew = task.Rewards
		envConf.MaxSteps = task.MaxSteps
	}

	agent, err := trainer.LoadAgent(algo, checkpoint, trainer.AgentConfig{
		NumEnvs:   1,
		BatchSize: trainConf.BatchSize,
		NEpochs:   trainConf.NEpochs,
		Gamma:     trainConf.Gamma,
		EntCoef:   trainConf.EntCoef,
		Seed:      seed,
	})
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	env, err := buildEnv(envBackend, envConf, rew, task, 0, false)
	if err != nil {
		return fmt.Errorf("failed to construct environment: %w", err)
	}
	defer env.Close()

	fmt.Printf("Evaluating %s for %d episodes\n", checkpoint, episodes)

	results := EvalResults{}
	for idx := 0; idx < episodes; idx++ {
		ep, err := rollEpisodeTraced(env, agent, seed+int64(idx), maxSteps, true, trajectories)
		if err != nil {
			return fmt.Errorf("episode %d failed: %w", idx+1, err)
		}
		ep.Episode = idx + 1
		results.Episodes = append(results.Episodes, ep)
		fmt.Printf("  episode %d: reward=%.2f length=%d success=%v\n", ep.Episode, ep.Reward, ep.Length, ep.Success)
	}

	results.Summary = summarize(checkpoint, results.Episodes)
	fmt.Printf("\nmean reward %.2f (std %.2f, min %.2f, max %.2f), mean length %.1f, success rate %.0f%%\n",
		results.Summary.MeanReward, results.Summary.StdReward,
		results.Summary.MinReward, results.Summary.MaxReward,
		results.Summary.MeanLength, results.Summary.SuccessRate*100)

	if output == "" {
		name := fmt.Sprintf("eval_results_%s.json", time.Now().Format("20060102_150405"))
		output = filepath.Join(filepath.Dir(checkpoint), name)
	}
	if err := rundir.AtomicWriteJSON(output, results); err != nil {
		return err
	}
	fmt.Printf("results written to %s\n", output)
	return nil
}

// rollEpisode plays one episode to completion, honoring the step cap.
func rollEpisode(env gym.Environment, policy evalPolicy, seed int64, maxSteps int, deterministic bool) (EpisodeResult, error) {
	return rollEpisodeTraced(env, policy, seed, maxSteps, deterministic, false)
}

// rollEpisodeTraced additionally records the per-step trajectory when
// trace is set.
func rollEpisodeTraced(env gym.Environment, policy evalPolicy, seed int64, maxSteps int, deterministic, trace bool) (EpisodeResult, error) {
	obs, _, err := env.Reset(seed)
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("failed to reset environment: %w", err)
	}

	ep := EpisodeResult{Seed: seed}
	done, truncated := false, false
	var lastInfo gym.Info
	for !done && !truncated {
		action, err := policy.Predict(obs, deterministic)
		if err != nil {
			return EpisodeResult{}, fmt.Errorf("failed to predict: %w", err)
		}
		res, err := env.Step(action)
		if err != nil {
			return EpisodeResult{}, fmt.Errorf("failed to step environment: %w", err)
		}
		obs = res.Obs
		done = res.Terminated
		truncated = res.Truncated
		lastInfo = res.Info
		ep.Reward += res.Reward
		ep.Length++
		if trace {
			ep.Trajectory = append(ep.Trajectory, TrajectoryStep{Action: action, Reward: res.Reward})
		}
		if maxSteps > 0 && ep.Length >= maxSteps {
			truncated = true
		}
	}

	ep.Truncated = truncated && !done
	ep.Success = lastInfo.Success()
	return ep, nil
}

// evalPolicy is the slice of trainer.Agent the rollout commands need.
type evalPolicy interface {
	Predict(obs gym.Observation, deterministic bool) (int, error)
}

func summarize(checkpoint string, episodes []EpisodeResult) EvalSummary {
	s := EvalSummary{
		Checkpoint: checkpoint,
		Episodes:   len(episodes),
		MinReward:  math.Inf(1),
		MaxReward:  math.Inf(-1),
		Timestamp:  timeutils.UnixSeconds(time.Now()),
	}
	if len(episodes) == 0 {
		s.MinReward, s.MaxReward = 0, 0
		return s
	}

	var sumR, sumL float64
	successes := 0
	for _, ep := range episodes {
		sumR += ep.Reward
		sumL += float64(ep.Length)
		if ep.Reward < s.MinReward {
			s.MinReward = ep.Reward
		}
		if ep.Reward > s.MaxReward {
			s.MaxReward = ep.Reward
		}
		if ep.Success {
			successes++
		}
	}
	n := float64(len(episodes))
	s.MeanReward = sumR / n
	s.MeanLength = sumL / n
	s.SuccessRate = float64(successes) / n

	var variance float64
	for _, ep := range episodes {
		d := ep.Reward - s.MeanReward
		variance += d * d
	}
	s.StdReward = math.Sqrt(variance / n)
	return s
}
