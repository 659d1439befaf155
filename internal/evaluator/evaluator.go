// Package evaluator runs deterministic evaluation passes on a step
// cadence inside the training loop.
package evaluator

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pokered-rl/trainctl/internal/gym"
	"github.com/pokered-rl/trainctl/internal/rundir"
	timeutils "github.com/pokered-rl/trainctl/internal/time"
)

// Policy selects actions during evaluation.
type Policy interface {
	Predict(obs gym.Observation, deterministic bool) (int, error)
}

// StatusSink receives completed evaluation records for merging into the
// live status snapshot.
type StatusSink interface {
	RecordEvalResult(rundir.EvalRecord) error
}

// Config wires up an Evaluator.
type Config struct {
	// EnvFunc constructs the dedicated evaluation environment. Called
	// lazily on the first pass, never earlier.
	EnvFunc func() (gym.Environment, error)

	Policy  Policy
	LogPath string

	// EverySteps is the trigger cadence in global timesteps; zero
	// disables evaluation entirely.
	EverySteps int64

	// Episodes per pass, clamped to at least one.
	Episodes int

	// MaxSteps caps each episode when positive; the episode then counts
	// as truncated.
	MaxSteps int

	BaseSeed int64
	Status   StatusSink
	Logger   *logrus.Logger
}

// Evaluator triggers whenever the global timestep count has advanced by
// the cadence since the last pass. A failing pass is logged and skipped
// with the cadence counter advanced, so one broken evaluation cannot
// stall or kill training.
type Evaluator struct {
	cfg Config
	log *logrus.Logger

	lastEvalStep int64
	env          gym.Environment

	now func() time.Time
}

func New(cfg Config) *Evaluator {
	if cfg.Episodes < 1 {
		cfg.Episodes = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Evaluator{cfg: cfg, log: log, now: time.Now}
}

// TrainingStart is a no-op; the evaluation environment is constructed
// lazily so nothing heavy happens before the first trigger.
func (e *Evaluator) TrainingStart(timesteps int64) error {
	return nil
}

// Step checks the cadence and runs one evaluation pass when due.
func (e *Evaluator) Step(timesteps int64) error {
	if e.cfg.EverySteps <= 0 {
		return nil
	}
	if timesteps-e.lastEvalStep < e.cfg.EverySteps {
		return nil
	}

	rec, err := e.safeEval(timesteps)
	if err != nil {
		e.log.WithError(err).Warn("eval failed")
		e.lastEvalStep = timesteps
		return nil
	}
	e.lastEvalStep = timesteps

	if err := rundir.AppendJSONL(e.cfg.LogPath, rec); err != nil {
		return fmt.Errorf("failed to append eval record: %w", err)
	}
	if e.cfg.Status != nil {
		if err := e.cfg.Status.RecordEvalResult(rec); err != nil {
			return fmt.Errorf("failed to merge eval result: %w", err)
		}
	}
	return nil
}

// TrainingEnd closes the evaluation environment, swallowing errors; a
// failing close must not mask a finished run.
func (e *Evaluator) TrainingEnd(timesteps int64) error {
	if e.env != nil {
		if err := e.env.Close(); err != nil {
			e.log.WithError(err).Debug("eval env close failed")
		}
		e.env = nil
	}
	return nil
}

func (e *Evaluator) ensureEnv() (gym.Environment, error) {
	if e.env == nil {
		env, err := e.cfg.EnvFunc()
		if err != nil {
			return nil, fmt.Errorf("failed to create eval env: %w", err)
		}
		e.env = env
	}
	return e.env, nil
}

// safeEval converts panics from the environment or policy into errors;
// an evaluation pass must never take down the training loop.
func (e *Evaluator) safeEval(timesteps int64) (rec rundir.EvalRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eval panicked: %v", r)
		}
	}()
	return e.runEval(timesteps)
}

func (e *Evaluator) runEval(timesteps int64) (rundir.EvalRecord, error) {
	env, err := e.ensureEnv()
	if err != nil {
		return rundir.EvalRecord{}, err
	}

	timestamp := timeutils.UnixSeconds(e.now())

	var (
		rewards   []float64
		lengths   []int
		started   []float64
		won       []float64
		badges    []float64
		levels    []float64
		successes int
	)

	for idx := 0; idx < e.cfg.Episodes; idx++ {
		seed := e.cfg.BaseSeed + int64(idx)
		obs, _, err := env.Reset(seed)
		if err != nil {
			return rundir.EvalRecord{}, fmt.Errorf("failed to reset eval env: %w", err)
		}

		var (
			totalR   float64
			steps    int
			lastInfo gym.Info
		)
		done, truncated := false, false
		for !done && !truncated {
			action, err := e.cfg.Policy.Predict(obs, true)
			if err != nil {
				return rundir.EvalRecord{}, fmt.Errorf("failed to predict: %w", err)
			}
			res, err := env.Step(action)
			if err != nil {
				return rundir.EvalRecord{}, fmt.Errorf("failed to step eval env: %w", err)
			}
			obs = res.Obs
			done = res.Terminated
			truncated = res.Truncated
			lastInfo = res.Info
			totalR += res.Reward
			steps++
			if e.cfg.MaxSteps > 0 && steps >= e.cfg.MaxSteps {
				truncated = true
			}
		}

		rewards = append(rewards, totalR)
		lengths = append(lengths, steps)

		// Episodes without a reported stats block count as zeros so the
		// detail arrays stay index-aligned with Rewards/Lengths.
		stats, _ := lastInfo.Episode()
		started = append(started, stats.BattlesStarted)
		won = append(won, stats.BattlesWon)
		badges = append(badges, stats.BadgesEarned)
		levels = append(levels, stats.LevelsGained)
		if lastInfo.Success() {
			successes++
		}
	}

	return rundir.EvalRecord{
		Timestamp:          timestamp,
		TimestepsWhenRan:   timesteps,
		Episodes:           e.cfg.Episodes,
		MeanReward:         meanFloat(rewards),
		MeanLength:         meanInt(lengths),
		Rewards:            rewards,
		Lengths:            lengths,
		MeanBattlesStarted: meanFloat(started),
		MeanBattlesWon:     meanFloat(won),
		MeanBadgesEarned:   meanFloat(badges),
		MeanLevelsGained:   meanFloat(levels),
		SuccessRate:        float64(successes) / float64(e.cfg.Episodes),
		BattlesStarted:     started,
		BattlesWon:         won,
		BadgesEarned:       badges,
		LevelsGained:       levels,
	}, nil
}

func meanFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
