package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/server"
	"github.com/pokered-rl/trainctl/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the training control server",
	Long: `Serve the HTTP control surface: start and stop training runs, poll
their status snapshots and evaluation history, and list checkpoints.
The trainer runs as a supervised subprocess of this server.`,
	Example: `  # Serve on the default port
  trainctl serve

  # Custom bind address and runs directory
  trainctl serve --host 127.0.0.1 --port 8080 --runs-dir /data/runs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Address to bind")
	serveCmd.Flags().Int("port", 8000, "Port to listen on")
	viper.BindPFlag("host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	// The daemon logs structured JSON; interactive commands keep text.
	log.SetFormatter(&logrus.JSONFormatter{})

	manager := supervisor.NewManager(cfg.RunsDir, log)
	srv := server.New(manager, log)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.WithFields(logrus.Fields{
		"addr":     addr,
		"runs_dir": cfg.RunsDir,
	}).Info("control server listening")

	if err := srv.Router().Run(addr); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}
