package cmd

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/rewards"
)

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Random-action environment sanity check",
	Long: `Construct one environment and take random actions for a fixed number
of steps. A clean pass means the emulator, save state and reward wiring
all work before committing to a long training run.`,
	Example: `  trainctl smoke --rom PokemonRed.gb --state init.state --steps 200`,
	RunE:    runSmoke,
}

func init() {
	rootCmd.AddCommand(smokeCmd)

	smokeCmd.Flags().String("config", config.DefaultPath, "Path to train config JSON/YAML")
	smokeCmd.Flags().String("rom", "PokemonRed.gb", "Path to Pokemon Red ROM")
	smokeCmd.Flags().String("state", "init.state", "Initial save state path")
	smokeCmd.Flags().String("env-backend", "", "Environment backend (default: the only registered one)")
	smokeCmd.Flags().Int("steps", 100, "Number of random steps")
	smokeCmd.Flags().Int64("seed", 0, "Environment seed")
}

func runSmoke(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	romPath, _ := cmd.Flags().GetString("rom")
	statePath, _ := cmd.Flags().GetString("state")
	envBackendFlag, _ := cmd.Flags().GetString("env-backend")
	steps, _ := cmd.Flags().GetInt("steps")
	seed, _ := cmd.Flags().GetInt64("seed")

	if err := checkFiles(
		pathCheck{label: "ROM", path: romPath},
		pathCheck{label: "state file", path: statePath},
	); err != nil {
		return err
	}

	envBackend, err := resolveEnvBackend(envBackendFlag)
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

	env, err := buildEnv(envBackend, envConf, rewards.Default(), nil, 0, false)
	if err != nil {
		return fmt.Errorf("failed to construct environment: %w", err)
	}
	defer env.Close()

	if _, _, err := env.Reset(seed); err != nil {
		return fmt.Errorf("failed to reset environment: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))
	numActions := env.NumActions()
	var total float64
	episodes := 0
	for i := 0; i < steps; i++ {
		res, err := env.Step(rng.Intn(numActions))
		if err != nil {
			return fmt.Errorf("step %d failed: %w", i+1, err)
		}
		total += res.Reward
		if res.Terminated || res.Truncated {
			episodes++
			if _, _, err := env.Reset(-1); err != nil {
				return fmt.Errorf("reset after episode end failed: %w", err)
			}
		}
	}

	fmt.Printf("smoke test passed: %d steps, %d episode ends, total reward %.2f\n", steps, episodes, total)
	return nil
}
