package cmd

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "trainctl",
	Short: "Pokemon Red PPO training controller",
	Long: `Supervises PPO training runs on the Pokemon Red environment.
Launches and watches the trainer, serves the control API, evaluates
checkpoints, and ships metrics to an MLflow tracking server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("runs-dir", "runs", "Directory run outputs are stored under")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().String("tracking-uri", "", "MLflow tracking URI (overrides MLFLOW_TRACKING_URI)")
	rootCmd.PersistentFlags().String("experiment-name", "", "MLflow experiment name")
	viper.BindPFlag("runs_dir", rootCmd.PersistentFlags().Lookup("runs-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("tracking_uri", rootCmd.PersistentFlags().Lookup("tracking-uri"))
	viper.BindPFlag("experiment_name", rootCmd.PersistentFlags().Lookup("experiment-name"))
}

func initConfig() {
	// A local .env carries ROM paths and tracking credentials
	godotenv.Load()

	// Environment variables
	viper.SetEnvPrefix("TRAINCTL")
	viper.AutomaticEnv()

	// Also bind MLflow and Databricks environment variables
	viper.BindEnv("tracking_uri", "TRAINCTL_TRACKING_URI", "MLFLOW_TRACKING_URI")
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")

	// Set defaults
	viper.SetDefault("runs_dir", "runs")
	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 8000)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("tracking_uri", "http://localhost:5000")
	viper.SetDefault("experiment_name", "pokemon-red-ppo")
}

func configureLogging() {
	level, err := logrus.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
