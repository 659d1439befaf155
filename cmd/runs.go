package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pokered-rl/trainctl/internal/rundir"
	timeutils "github.com/pokered-rl/trainctl/internal/time"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List training runs",
	Long:  "List every run under the runs directory, most recent activity first.",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	runsDir := viper.GetString("runs_dir")
	runs := rundir.CollectRuns(runsDir)
	if len(runs) == 0 {
		fmt.Printf("no runs under %s\n", runsDir)
		return nil
	}

	fmt.Printf("%-24s %-10s %14s %12s %8s  %s\n", "RUN", "STATUS", "TIMESTEPS", "LAST STEPS", "ETA", "LAST ACTIVITY")
	for _, run := range runs {
		status := "-"
		timesteps := "-"
		eta := "-"
		if run.Status != nil {
			status = run.Status.Status
			timesteps = fmt.Sprintf("%d/%d", run.Status.TimestepsDone, run.Status.TimestepsTotal)
			remaining := run.Status.TimestepsTotal - run.Status.TimestepsDone
			if d, ok := timeutils.ETA(remaining, run.Status.Throughput); ok {
				eta = timeutils.FormatDuration(d)
			}
		}
		lastSteps := "-"
		if run.LatestSteps != nil {
			lastSteps = fmt.Sprintf("%d", *run.LatestSteps)
		}
		fmt.Printf("%-24s %-10s %14s %12s %8s  %s\n",
			run.Name, status, timesteps, lastSteps, eta,
			timeutils.Age(timeutils.FromUnixSeconds(run.LastModified)))
	}
	return nil
}
