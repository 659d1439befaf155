package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pokered-rl/trainctl/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a training config file",
	Long: `Check a training config document against the same rules the train
command applies before a run starts. Errors make the command fail;
warnings are printed but do not.`,
	Example: `  trainctl validate --config configs/train_default.json`,
	RunE:    runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("config", config.DefaultPath, "Path to train config JSON/YAML")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	file, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	envConf := config.DefaultEnv().Apply(file.Env)
	trainConf := config.DefaultTrain().Apply(file.Train)

	envErrs, envWarns := config.ValidateEnvConfig(envConf.Map())
	trainErrs, trainWarns := config.ValidateTrainConfig(trainConf.Map())

	errors := append(envErrs, trainErrs...)
	warnings := append(envWarns, trainWarns...)

	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, e := range errors {
		fmt.Printf("error: %s\n", e)
	}

	if len(errors) > 0 {
		return fmt.Errorf("config has %d error(s)", len(errors))
	}
	fmt.Printf("%s is valid (%d warning(s))\n", configPath, len(warnings))
	return nil
}
