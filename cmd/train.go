package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/curriculum"
	"github.com/pokered-rl/trainctl/internal/evaluator"
	"github.com/pokered-rl/trainctl/internal/gym"
	"github.com/pokered-rl/trainctl/internal/mlflow"
	"github.com/pokered-rl/trainctl/internal/rewards"
	"github.com/pokered-rl/trainctl/internal/rundir"
	"github.com/pokered-rl/trainctl/internal/status"
	"github.com/pokered-rl/trainctl/internal/trainer"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a PPO agent on Pokemon Red",
	Long: `Run the training loop: construct the vectorized environments, collect
rollouts, optimize the policy, and write checkpoints, status snapshots
and evaluation records into the run directory.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("config", config.DefaultPath, "Path to train config JSON/YAML")
	trainCmd.Flags().String("rom", "PokemonRed.gb", "Path to Pokemon Red ROM")
	trainCmd.Flags().String("state", "init.state", "Initial save state path")
	trainCmd.Flags().String("run-name", "poke_run", "Run name for outputs")
	trainCmd.Flags().String("output-dir", "runs", "Directory to store checkpoints/logs")
	trainCmd.Flags().Int("num-envs", 0, "Override number of parallel envs")
	trainCmd.Flags().Int("batch-size", 0, "Override optimizer batch size")
	trainCmd.Flags().Int("total-multiplier", 0, "Multiplier for total timesteps (ep_length * num_envs * total_multiplier)")
	trainCmd.Flags().String("preset", "", fmt.Sprintf("GPU sizing preset (%s)", strings.Join(config.PresetNames(), "/")))
	trainCmd.Flags().Bool("stream", true, "Enable map streaming")
	trainCmd.Flags().Bool("no-stream", false, "Disable map streaming")
	trainCmd.Flags().Bool("track", false, "Enable MLflow experiment tracking")
	trainCmd.Flags().String("task", "", fmt.Sprintf("Curriculum task (%s) or task file path", strings.Join(curriculum.Names(), "/")))
	trainCmd.Flags().String("env-backend", "", "Environment backend (default: the only registered one)")
	trainCmd.Flags().String("algo", "", "Algorithm backend (default: the only registered one)")
	trainCmd.Flags().Int64("checkpoint-freq", 0, "Steps between checkpoints (default ep_length/2)")
	trainCmd.Flags().String("resume", "", "Checkpoint to resume from")
	trainCmd.Flags().Bool("resume-latest", false, "Resume from the newest checkpoint in the run directory")
	trainCmd.Flags().String("status-file", "", "Status snapshot path (default <run dir>/status.json)")
	trainCmd.Flags().Float64("status-interval", 10, "Minimum seconds between status writes")
	trainCmd.Flags().String("eval-log", "", "Evaluation log path (default <run dir>/eval.jsonl)")
	trainCmd.Flags().Int64("eval-every-steps", 0, "Timesteps between evaluation passes (0 disables)")
	trainCmd.Flags().Int("eval-episodes", 2, "Episodes per evaluation pass")
	trainCmd.Flags().Int("eval-max-steps", 0, "Step cap per evaluation episode (0 = episode cap)")
	trainCmd.Flags().Bool("eval-stream", false, "Stream the evaluation environment too")
	trainCmd.Flags().Int64("seed", 0, "Base random seed")
}

func runTrain(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	romPath, _ := cmd.Flags().GetString("rom")
	statePath, _ := cmd.Flags().GetString("state")
	runName, _ := cmd.Flags().GetString("run-name")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	numEnvsFlag, _ := cmd.Flags().GetInt("num-envs")
	batchSizeFlag, _ := cmd.Flags().GetInt("batch-size")
	multiplierFlag, _ := cmd.Flags().GetInt("total-multiplier")
	preset, _ := cmd.Flags().GetString("preset")
	streamFlag, _ := cmd.Flags().GetBool("stream")
	noStream, _ := cmd.Flags().GetBool("no-stream")
	track, _ := cmd.Flags().GetBool("track")
	taskFlag, _ := cmd.Flags().GetString("task")
	envBackendFlag, _ := cmd.Flags().GetString("env-backend")
	algoFlag, _ := cmd.Flags().GetString("algo")
	checkpointFreq, _ := cmd.Flags().GetInt64("checkpoint-freq")
	resume, _ := cmd.Flags().GetString("resume")
	resumeLatest, _ := cmd.Flags().GetBool("resume-latest")
	statusFile, _ := cmd.Flags().GetString("status-file")
	statusInterval, _ := cmd.Flags().GetFloat64("status-interval")
	evalLog, _ := cmd.Flags().GetString("eval-log")
	evalEverySteps, _ := cmd.Flags().GetInt64("eval-every-steps")
	evalEpisodes, _ := cmd.Flags().GetInt("eval-episodes")
	evalMaxSteps, _ := cmd.Flags().GetInt("eval-max-steps")
	evalStream, _ := cmd.Flags().GetBool("eval-stream")
	seed, _ := cmd.Flags().GetInt64("seed")

	streamEnabled := streamFlag && !noStream

	// Resolve configuration before touching the filesystem.
	file, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	envConf := config.DefaultEnv().Apply(file.Env)
	trainConf := config.DefaultTrain().Apply(file.Train)

	if preset != "" {
		trainConf, err = trainConf.WithPreset(preset)
		if err != nil {
			return err
		}
	}
	if numEnvsFlag > 0 {
		trainConf.NumEnvs = numEnvsFlag
	}
	if batchSizeFlag > 0 {
		trainConf.BatchSize = batchSizeFlag
	}
	if multiplierFlag > 0 {
		trainConf.TotalMultiplier = multiplierFlag
	}

	rew := rewards.Default()
	var task *curriculum.Task
	if taskFlag != "" {
		t, err := loadTask(taskFlag)
		if err != nil {
			return err
		}
		task = &t
		rew = t.Rewards
		envConf.MaxSteps = t.MaxSteps
	}

	if err := checkFiles(
		pathCheck{label: "ROM", path: romPath},
		pathCheck{label: "state file", path: statePath},
	); err != nil {
		return err
	}

	if errs, warns := config.ValidateEnvConfig(envConf.Map()); len(errs) > 0 {
		return fmt.Errorf("invalid env config: %s", strings.Join(errs, "; "))
	} else {
		for _, w := range warns {
			log.Warn(w)
		}
	}
	if errs, warns := config.ValidateTrainConfig(trainConf.Map()); len(errs) > 0 {
		return fmt.Errorf("invalid train config: %s", strings.Join(errs, "; "))
	} else {
		for _, w := range warns {
			log.Warn(w)
		}
	}

	envBackend, err := resolveEnvBackend(envBackendFlag)
	if err != nil {
		return err
	}
	algo, err := resolveAlgo(algoFlag)
	if err != nil {
		return err
	}

	numEnvs := trainConf.NumEnvs
	epLength := envConf.MaxSteps
	totalTimesteps := int64(epLength) * int64(numEnvs) * int64(trainConf.TotalMultiplier)
	nSteps := epLength / numEnvs
	if nSteps < 1 {
		return fmt.Errorf("num_envs (%d) exceeds the episode length (%d)", numEnvs, epLength)
	}

	dir := rundir.New(outputDir, runName)

	// Resume sources are resolved before any directory mutation.
	var resumePath string
	var startSteps int64
	if resumeLatest {
		ckpt := rundir.LatestCheckpoint(dir.Path())
		if ckpt == nil {
			return fmt.Errorf("no checkpoint found in %s to resume from", dir.Path())
		}
		resumePath = ckpt.Path
		if ckpt.Steps != nil {
			startSteps = *ckpt.Steps
		}
	} else if resume != "" {
		if err := checkFiles(pathCheck{label: "checkpoint", path: resume}); err != nil {
			return err
		}
		resumePath = resume
		if steps := rundir.ParseSteps(filepath.Base(resume)); steps != nil {
			startSteps = *steps
		}
	}

	if err := dir.Ensure(); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	if statusFile == "" {
		statusFile = dir.StatusFile()
	}
	if evalLog == "" {
		evalLog = dir.EvalLog()
	}

	envConf.GBPath = romPath
	envConf.InitState = statePath
	envConf.SessionPath = dir.Path()

	// Run metadata is written before anything heavy starts.
	trainMap := trainConf.Map()
	if preset != "" {
		trainMap["preset"] = preset
	} else {
		trainMap["preset"] = nil
	}
	md := rundir.NewMetadata(dir, envConf.Map(), trainMap)
	md.StreamEnabled = streamEnabled
	md.TrackingEnabled = track
	md.Seed = seed
	md.ResumedFrom = resumePath
	if err := rundir.WriteMetadata(dir, md); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}

	agentCfg := trainer.AgentConfig{
		NSteps:    nSteps,
		NumEnvs:   numEnvs,
		BatchSize: trainConf.BatchSize,
		NEpochs:   trainConf.NEpochs,
		Gamma:     trainConf.Gamma,
		EntCoef:   trainConf.EntCoef,
		Seed:      seed,
	}
	var agent trainer.Agent
	if resumePath != "" {
		log.WithField("checkpoint", resumePath).Info("loading checkpoint")
		agent, err = trainer.LoadAgent(algo, resumePath, agentCfg)
	} else {
		agent, err = trainer.NewAgent(algo, agentCfg)
	}
	if err != nil {
		return fmt.Errorf("failed to construct agent: %w", err)
	}

	envs := make([]gym.Environment, 0, numEnvs)
	defer func() {
		for _, env := range envs {
			env.Close()
		}
	}()
	for rank := 0; rank < numEnvs; rank++ {
		env, err := buildEnv(envBackend, envConf, rew, task, rank, streamEnabled)
		if err != nil {
			return fmt.Errorf("failed to construct environment %d: %w", rank, err)
		}
		envs = append(envs, env)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Tracking is optional; a missing server fails fast here, not
	// mid-run.
	var trackClient *mlflow.Client
	var trackRunID string
	if track {
		trackClient, err = mlflow.NewClient(config.New())
		if err != nil {
			return fmt.Errorf("failed to create tracking client: %w", err)
		}
		trackRunID, err = trackClient.StartRun(ctx, runName, map[string]string{
			"run_id":  md.RunID,
			"run_dir": dir.Path(),
		})
		if err != nil {
			return fmt.Errorf("failed to start tracking run: %w", err)
		}
		params := stringifyParams("env.", envConf.Map())
		for key, value := range stringifyParams("train.", trainMap) {
			params[key] = value
		}
		if err := trackClient.LogParamsFromMap(ctx, trackRunID, params); err != nil {
			log.WithError(err).Warn("failed to log tracking params")
		}
	}

	if checkpointFreq < 1 {
		checkpointFreq = int64(epLength / 2)
	}
	writer := status.NewWriter(statusFile, totalTimesteps, runName, trainConf, envConf,
		time.Duration(statusInterval*float64(time.Second)))

	callbacks := []trainer.Callback{
		trainer.NewCheckpointCallback(agent, dir.Path(), "poke", checkpointFreq, log),
		writer,
	}

	var eval *evaluator.Evaluator
	if evalEverySteps > 0 {
		var sink evaluator.StatusSink = writer
		if trackClient != nil {
			sink = evalFanout{writer, trackingEvalSink{trackClient.RunLogger(trackRunID)}}
		}
		eval = evaluator.New(evaluator.Config{
			EnvFunc: func() (gym.Environment, error) {
				return buildEnv(envBackend, envConf, rew, task, numEnvs, evalStream)
			},
			Policy:     agent,
			LogPath:    evalLog,
			EverySteps: evalEverySteps,
			Episodes:   evalEpisodes,
			MaxSteps:   evalMaxSteps,
			BaseSeed:   seed,
			Status:     sink,
			Logger:     log,
		})
		callbacks = append(callbacks, eval)
	}

	var trackingCb *trainer.TrackingCallback
	if trackClient != nil {
		trackingCb = trainer.NewTrackingCallback(trackClient.RunLogger(trackRunID), nil, 0, log)
		callbacks = append(callbacks, trackingCb)
	}

	loop, err := trainer.NewLoop(trainer.LoopConfig{
		Agent:          agent,
		Envs:           envs,
		NSteps:         nSteps,
		Seed:           seed,
		StartTimesteps: startSteps,
		FinalPath:      filepath.Join(dir.Path(), rundir.FinalCheckpointName),
		Callbacks:      callbacks,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	writer.SetMetricsSource(loop)
	if trackingCb != nil {
		trackingCb.SetSource(loop)
	}

	log.WithFields(logrus.Fields{
		"run_name":        runName,
		"num_envs":        numEnvs,
		"n_steps":         nSteps,
		"total_timesteps": totalTimesteps,
	}).Info("training started")

	runErr := loop.Run(ctx, totalTimesteps)
	switch {
	case runErr == nil:
		if trackClient != nil {
			uploads := map[string]string{
				filepath.Join(dir.Path(), rundir.FinalCheckpointName): rundir.FinalCheckpointName,
				dir.MetadataFile():                                    rundir.MetadataFileName,
			}
			if err := trackClient.UploadArtifacts(context.Background(), trackRunID, uploads); err != nil {
				log.WithError(err).Warn("failed to upload run artifacts")
			}
			if err := trackClient.EndRun(context.Background(), trackRunID, mlflow.RunStatusFinished); err != nil {
				log.WithError(err).Warn("failed to finish tracking run")
			}
		}
		log.WithField("timesteps", loop.Timesteps()).Info("training complete")
		return nil

	case errors.Is(runErr, context.Canceled):
		// Interrupted: flush the final snapshot and wind the callbacks
		// down; periodic checkpoints carry the progress.
		for _, cb := range callbacks {
			if err := cb.TrainingEnd(loop.Timesteps()); err != nil {
				log.WithError(err).Warn("shutdown callback failed")
			}
		}
		if trackClient != nil {
			if err := trackClient.EndRun(context.Background(), trackRunID, mlflow.RunStatusKilled); err != nil {
				log.WithError(err).Warn("failed to finish tracking run")
			}
		}
		log.WithField("timesteps", loop.Timesteps()).Info("training interrupted")
		return nil

	default:
		if trackClient != nil {
			if err := trackClient.EndRun(context.Background(), trackRunID, mlflow.RunStatusFailed); err != nil {
				log.WithError(err).Warn("failed to finish tracking run")
			}
		}
		return fmt.Errorf("training failed: %w", runErr)
	}
}

// evalFanout delivers one evaluation record to several sinks.
type evalFanout []evaluator.StatusSink

func (f evalFanout) RecordEvalResult(rec rundir.EvalRecord) error {
	for _, sink := range f {
		if err := sink.RecordEvalResult(rec); err != nil {
			return err
		}
	}
	return nil
}

// trackingEvalSink forwards evaluation aggregates to the tracking
// backend. Failures are logged and dropped so a flaky tracking server
// cannot abort training.
type trackingEvalSink struct {
	logger trainer.MetricLogger
}

func (s trackingEvalSink) RecordEvalResult(rec rundir.EvalRecord) error {
	metrics := map[string]float64{
		"eval/mean_reward":  rec.MeanReward,
		"eval/mean_length":  rec.MeanLength,
		"eval/success_rate": rec.SuccessRate,
	}
	if err := s.logger.LogMetrics(rec.TimestepsWhenRan, metrics); err != nil {
		log.WithError(err).Warn("failed to log eval metrics")
	}
	return nil
}
