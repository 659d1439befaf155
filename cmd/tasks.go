package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pokered-rl/trainctl/internal/curriculum"
	"github.com/pokered-rl/trainctl/internal/rewards"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect curriculum tasks",
	Long:  "List and show the built-in curriculum tasks and their reward shaping.",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available tasks",
	RunE:  runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <name-or-file>",
	Short: "Show one task's full configuration",
	Long: `Print a task as JSON. The argument is a registry name or a path to a
user-authored task file (JSON or YAML).`,
	Args: cobra.ExactArgs(1),
	RunE: runTasksShow,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksShowCmd)
}

func runTasksList(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-20s %10s  %s\n", "TASK", "MAX STEPS", "DESCRIPTION")
	for _, task := range curriculum.All() {
		fmt.Printf("%-20s %10d  %s\n", task.Name, task.MaxSteps, task.Description)
	}
	fmt.Printf("\nreward presets for task files: %s\n", strings.Join(rewards.PresetNames(), ", "))
	return nil
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	task, err := loadTask(args[0])
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(task.Map())
}
