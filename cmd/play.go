package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/rewards"
	"github.com/pokered-rl/trainctl/internal/rundir"
	timeutils "github.com/pokered-rl/trainctl/internal/time"
	"github.com/pokered-rl/trainctl/internal/trainer"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Roll a checkpoint in a single environment",
	Long: `Play one episode with a trained policy, by default the newest
checkpoint anywhere under the runs directory. Actions are sampled
(non-deterministic) so the agent behaves as it did during training.`,
	Example: `  # Watch the newest checkpoint across all runs
  trainctl play

  # A specific checkpoint with streaming to the shared map
  trainctl play --checkpoint runs/poke_run/final.ckpt --stream`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("checkpoint", "", "Checkpoint to play (default: newest under the runs dir)")
	playCmd.Flags().String("config", config.DefaultPath, "Path to train config JSON/YAML")
	playCmd.Flags().String("rom", "PokemonRed.gb", "Path to Pokemon Red ROM")
	playCmd.Flags().String("state", "init.state", "Initial save state path")
	playCmd.Flags().String("task", "", "Curriculum task name or task file path")
	playCmd.Flags().String("env-backend", "", "Environment backend (default: the only registered one)")
	playCmd.Flags().String("algo", "", "Algorithm backend (default: the only registered one)")
	playCmd.Flags().Int("max-steps", 0, "Step cap for the episode (0 = episode cap)")
	playCmd.Flags().Int64("seed", 0, "Episode seed")
	playCmd.Flags().Bool("stream", false, "Broadcast positions to the shared map view")
}

func runPlay(cmd *cobra.Command, args []string) error {
	checkpoint, _ := cmd.Flags().GetString("checkpoint")
	configPath, _ := cmd.Flags().GetString("config")
	romPath, _ := cmd.Flags().GetString("rom")
	statePath, _ := cmd.Flags().GetString("state")
	taskFlag, _ := cmd.Flags().GetString("task")
	envBackendFlag, _ := cmd.Flags().GetString("env-backend")
	algoFlag, _ := cmd.Flags().GetString("algo")
	maxSteps, _ := cmd.Flags().GetInt("max-steps")
	seed, _ := cmd.Flags().GetInt64("seed")
	streamOn, _ := cmd.Flags().GetBool("stream")

	if checkpoint == "" {
		runsDir := viper.GetString("runs_dir")
		latest, runName := rundir.FindLatestCheckpoint(runsDir)
		if latest == nil {
			return fmt.Errorf("no checkpoint found under %s; train first or pass --checkpoint", runsDir)
		}
		checkpoint = latest.Path
		fmt.Printf("Using newest checkpoint %s from run %q (written %s)\n",
			latest.Name, runName, timeutils.Age(timeutils.FromUnixSeconds(latest.MTime)))
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
	envConf.Headless = false
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

	agent, err := trainer.LoadAgent(algo, checkpoint, trainer.AgentConfig{NumEnvs: 1, Seed: seed})
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	env, err := buildEnv(envBackend, envConf, rew, task, 0, streamOn)
	if err != nil {
		return fmt.Errorf("failed to construct environment: %w", err)
	}
	defer env.Close()

	ep, err := rollEpisode(env, agent, seed, maxSteps, false)
	if err != nil {
		return err
	}
	fmt.Printf("episode finished: reward=%.2f length=%d truncated=%v success=%v\n",
		ep.Reward, ep.Length, ep.Truncated, ep.Success)
	return nil
}
