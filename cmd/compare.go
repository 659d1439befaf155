package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/rewards"
	"github.com/pokered-rl/trainctl/internal/rundir"
	"github.com/pokered-rl/trainctl/internal/trainer"
)

var compareCmd = &cobra.Command{
	Use:   "compare <checkpoint-a> <checkpoint-b>",
	Short: "Compare two checkpoints side by side",
	Long: `Run the same deterministic episodes against two checkpoints on fresh
environments and report the results next to each other. A summary.json
lands in a timestamped directory under the output dir.`,
	Example: `  trainctl compare runs/a/final.ckpt runs/b/final.ckpt --episodes 3`,
	Args:    cobra.ExactArgs(2),
	RunE:    runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().String("config", config.DefaultPath, "Path to train config JSON/YAML")
	compareCmd.Flags().String("rom", "PokemonRed.gb", "Path to Pokemon Red ROM")
	compareCmd.Flags().String("state", "init.state", "Initial save state path")
	compareCmd.Flags().String("task", "", "Curriculum task name or task file path")
	compareCmd.Flags().String("env-backend", "", "Environment backend (default: the only registered one)")
	compareCmd.Flags().String("algo", "", "Algorithm backend (default: the only registered one)")
	compareCmd.Flags().Int("episodes", 3, "Episodes per checkpoint")
	compareCmd.Flags().Int("max-steps", 2048, "Step cap per episode")
	compareCmd.Flags().Int64("seed", 0, "Base seed shared by both sides")
	compareCmd.Flags().String("output-dir", "compare", "Where comparison summaries are written")
}

// CompareSummary is the summary.json document for one comparison.
type CompareSummary struct {
	Seed      int64       `json:"seed"`
	Episodes  int         `json:"episodes"`
	MaxSteps  int         `json:"max_steps"`
	A         EvalSummary `json:"a"`
	B         EvalSummary `json:"b"`
	CreatedAt string      `json:"created_at"`
}

func runCompare(cmd *cobra.Command, args []string) error {
	ckptA, ckptB := args[0], args[1]
	configPath, _ := cmd.Flags().GetString("config")
	romPath, _ := cmd.Flags().GetString("rom")
	statePath, _ := cmd.Flags().GetString("state")
	taskFlag, _ := cmd.Flags().GetString("task")
	envBackendFlag, _ := cmd.Flags().GetString("env-backend")
	algoFlag, _ := cmd.Flags().GetString("algo")
	episodes, _ := cmd.Flags().GetInt("episodes")
	maxSteps, _ := cmd.Flags().GetInt("max-steps")
	seed, _ := cmd.Flags().GetInt64("seed")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	if episodes < 1 {
		episodes = 1
	}

	if err := checkFiles(
		pathCheck{label: "checkpoint", path: ckptA},
		pathCheck{label: "checkpoint", path: ckptB},
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

	side := func(checkpoint string) (EvalSummary, error) {
		agent, err := trainer.LoadAgent(algo, checkpoint, trainer.AgentConfig{NumEnvs: 1, Seed: seed})
		if err != nil {
			return EvalSummary{}, fmt.Errorf("failed to load %s: %w", checkpoint, err)
		}
		env, err := buildEnv(envBackend, envConf, rew, task, 0, false)
		if err != nil {
			return EvalSummary{}, fmt.Errorf("failed to construct environment: %w", err)
		}
		defer env.Close()

		var eps []EpisodeResult
		for idx := 0; idx < episodes; idx++ {
			ep, err := rollEpisode(env, agent, seed+int64(idx), maxSteps, true)
			if err != nil {
				return EvalSummary{}, fmt.Errorf("%s episode %d failed: %w", checkpoint, idx+1, err)
			}
			ep.Episode = idx + 1
			eps = append(eps, ep)
		}
		return summarize(checkpoint, eps), nil
	}

	fmt.Printf("Comparing %s vs %s over %d episodes\n", ckptA, ckptB, episodes)
	summaryA, err := side(ckptA)
	if err != nil {
		return err
	}
	summaryB, err := side(ckptB)
	if err != nil {
		return err
	}

	fmt.Printf("\n%-12s %12s %12s\n", "", "A", "B")
	fmt.Printf("%-12s %12.2f %12.2f\n", "mean reward", summaryA.MeanReward, summaryB.MeanReward)
	fmt.Printf("%-12s %12.1f %12.1f\n", "mean length", summaryA.MeanLength, summaryB.MeanLength)
	fmt.Printf("%-12s %11.0f%% %11.0f%%\n", "success", summaryA.SuccessRate*100, summaryB.SuccessRate*100)

	stamp := time.Now().Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, "compare_"+stamp, "summary.json")
	summary := CompareSummary{
		Seed:      seed,
		Episodes:  episodes,
		MaxSteps:  maxSteps,
		A:         summaryA,
		B:         summaryB,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	if err := rundir.AtomicWriteJSON(summaryPath, summary); err != nil {
		return err
	}
	fmt.Printf("summary written to %s\n", summaryPath)
	return nil
}
