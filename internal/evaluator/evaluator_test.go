package evaluator

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokered-rl/trainctl/internal/gym"
	"github.com/pokered-rl/trainctl/internal/gym/gymtest"
	"github.com/pokered-rl/trainctl/internal/rundir"
)

type sinkRecorder struct {
	records []rundir.EvalRecord
}

func (s *sinkRecorder) RecordEvalResult(rec rundir.EvalRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestEvaluator(t *testing.T, env *gymtest.ScriptedEnv, cfg Config) (*Evaluator, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "eval.jsonl")
	cfg.EnvFunc = func() (gym.Environment, error) { return env, nil }
	if cfg.Policy == nil {
		cfg.Policy = &gymtest.FixedPolicy{}
	}
	cfg.LogPath = logPath
	cfg.Logger = quietLogger()
	return New(cfg), logPath
}

func TestDisabledCadenceNeverEvaluates(t *testing.T) {
	envCalls := 0
	e := New(Config{
		EnvFunc: func() (gym.Environment, error) {
			envCalls++
			return &gymtest.ScriptedEnv{EpisodeLen: 2}, nil
		},
		Policy:     &gymtest.FixedPolicy{},
		LogPath:    filepath.Join(t.TempDir(), "eval.jsonl"),
		EverySteps: 0,
		Logger:     quietLogger(),
	})

	for step := int64(1); step <= 1000; step++ {
		require.NoError(t, e.Step(step))
	}
	assert.Zero(t, envCalls, "disabled evaluator must never build its environment")
}

func TestCadenceOverSteppedRange(t *testing.T) {
	env := &gymtest.ScriptedEnv{EpisodeLen: 3, RewardPerStep: 1}
	e, logPath := newTestEvaluator(t, env, Config{EverySteps: 100, Episodes: 1})

	for step := int64(1); step <= 350; step++ {
		require.NoError(t, e.Step(step))
	}

	records := rundir.ReadEvalLog(logPath, 0)
	require.Len(t, records, 3, "expected passes at 100, 200 and 300")
	// Newest first
	assert.Equal(t, int64(300), records[0].TimestepsWhenRan)
	assert.Equal(t, int64(200), records[1].TimestepsWhenRan)
	assert.Equal(t, int64(100), records[2].TimestepsWhenRan)
}

func TestEnvBuiltLazilyOnFirstTrigger(t *testing.T) {
	envCalls := 0
	logPath := filepath.Join(t.TempDir(), "eval.jsonl")
	e := New(Config{
		EnvFunc: func() (gym.Environment, error) {
			envCalls++
			return &gymtest.ScriptedEnv{EpisodeLen: 2}, nil
		},
		Policy:     &gymtest.FixedPolicy{},
		LogPath:    logPath,
		EverySteps: 50,
		Episodes:   1,
		Logger:     quietLogger(),
	})

	require.NoError(t, e.TrainingStart(0))
	require.NoError(t, e.Step(49))
	assert.Zero(t, envCalls)

	require.NoError(t, e.Step(50))
	assert.Equal(t, 1, envCalls)

	require.NoError(t, e.Step(100))
	assert.Equal(t, 1, envCalls, "environment is constructed once and reused")
}

func TestEpisodeSeedsDerivedFromBase(t *testing.T) {
	env := &gymtest.ScriptedEnv{EpisodeLen: 2}
	e, _ := newTestEvaluator(t, env, Config{EverySteps: 10, Episodes: 3, BaseSeed: 42})

	require.NoError(t, e.Step(10))
	assert.Equal(t, []int64{42, 43, 44}, env.Seeds)
}

func TestEvaluationIsDeterministic(t *testing.T) {
	env := &gymtest.ScriptedEnv{EpisodeLen: 4}
	policy := &gymtest.FixedPolicy{}
	e, _ := newTestEvaluator(t, env, Config{EverySteps: 10, Episodes: 2, Policy: policy})

	require.NoError(t, e.Step(10))
	assert.Positive(t, policy.Calls)
	assert.Equal(t, policy.Calls, policy.DeterministicCalls, "evaluation must disable exploration noise")
}

func TestMaxStepsForcesTruncation(t *testing.T) {
	env := &gymtest.ScriptedEnv{EpisodeLen: 0} // never terminates on its own
	e, logPath := newTestEvaluator(t, env, Config{EverySteps: 10, Episodes: 2, MaxSteps: 5})

	require.NoError(t, e.Step(10))

	records := rundir.ReadEvalLog(logPath, 0)
	require.Len(t, records, 1)
	assert.Equal(t, []int{5, 5}, records[0].Lengths)
}

func TestRecordAggregates(t *testing.T) {
	env := &gymtest.ScriptedEnv{
		EpisodeLen:    4,
		RewardPerStep: 2,
		Counters: gym.EpisodeStats{
			BattlesStarted: 3,
			BattlesWon:     2,
			BadgesEarned:   1,
			LevelsGained:   5,
		},
		ReportSuccess: true,
	}
	sink := &sinkRecorder{}
	e, logPath := newTestEvaluator(t, env, Config{EverySteps: 10, Episodes: 2, Status: sink})

	require.NoError(t, e.Step(10))

	records := rundir.ReadEvalLog(logPath, 0)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, 2, rec.Episodes)
	assert.Equal(t, []float64{8, 8}, rec.Rewards)
	assert.Equal(t, []int{4, 4}, rec.Lengths)
	assert.Equal(t, 8.0, rec.MeanReward)
	assert.Equal(t, 4.0, rec.MeanLength)
	assert.Equal(t, 3.0, rec.MeanBattlesStarted)
	assert.Equal(t, 2.0, rec.MeanBattlesWon)
	assert.Equal(t, 1.0, rec.MeanBadgesEarned)
	assert.Equal(t, 5.0, rec.MeanLevelsGained)
	assert.Equal(t, 1.0, rec.SuccessRate)

	require.Len(t, sink.records, 1)
	assert.Equal(t, rec.MeanReward, sink.records[0].MeanReward)
}

func TestMissingEpisodeInfoDefaultsToZero(t *testing.T) {
	env := &gymtest.ScriptedEnv{EpisodeLen: 3, OmitEpisodeInfo: true}
	e, logPath := newTestEvaluator(t, env, Config{EverySteps: 10, Episodes: 2})

	require.NoError(t, e.Step(10))

	records := rundir.ReadEvalLog(logPath, 0)
	require.Len(t, records, 1)
	assert.Equal(t, []float64{0, 0}, records[0].BattlesWon)
	assert.Zero(t, records[0].SuccessRate)
}

func TestSuccessComesOnlyFromExplicitFlag(t *testing.T) {
	// Terminating cleanly without a success report must not count as
	// success.
	env := &gymtest.ScriptedEnv{EpisodeLen: 3, ReportSuccess: false}
	e, logPath := newTestEvaluator(t, env, Config{EverySteps: 10, Episodes: 2})

	require.NoError(t, e.Step(10))

	records := rundir.ReadEvalLog(logPath, 0)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].SuccessRate)
}

func TestFailedPassSkipsAndAdvancesCadence(t *testing.T) {
	env := &gymtest.ScriptedEnv{EpisodeLen: 3, StepErr: errors.New("emulator crashed")}
	e, logPath := newTestEvaluator(t, env, Config{EverySteps: 100, Episodes: 1})

	require.NoError(t, e.Step(100), "a failing pass must not surface an error")
	assert.Empty(t, rundir.ReadEvalLog(logPath, 0))

	// The counter advanced past the failure: no retry until the next
	// cadence boundary.
	require.NoError(t, e.Step(150))
	assert.Empty(t, rundir.ReadEvalLog(logPath, 0))

	env.StepErr = nil
	require.NoError(t, e.Step(200))
	records := rundir.ReadEvalLog(logPath, 0)
	require.Len(t, records, 1)
	assert.Equal(t, int64(200), records[0].TimestepsWhenRan)
}

func TestPanickingPassIsContained(t *testing.T) {
	env := &gymtest.ScriptedEnv{EpisodeLen: 3, StepPanic: "index out of range"}
	e, logPath := newTestEvaluator(t, env, Config{EverySteps: 10, Episodes: 1})

	assert.NotPanics(t, func() {
		require.NoError(t, e.Step(10))
	})
	assert.Empty(t, rundir.ReadEvalLog(logPath, 0))
}

func TestTrainingEndClosesEnvOnce(t *testing.T) {
	env := &gymtest.ScriptedEnv{EpisodeLen: 2}
	e, _ := newTestEvaluator(t, env, Config{EverySteps: 10, Episodes: 1})

	require.NoError(t, e.Step(10))
	require.NoError(t, e.TrainingEnd(10))
	assert.Equal(t, 1, env.CloseCalled)

	// Idempotent when no environment exists
	require.NoError(t, e.TrainingEnd(10))
	assert.Equal(t, 1, env.CloseCalled)
}

func TestTrainingEndWithoutTriggerIsNoop(t *testing.T) {
	envCalls := 0
	e := New(Config{
		EnvFunc: func() (gym.Environment, error) {
			envCalls++
			return &gymtest.ScriptedEnv{}, nil
		},
		Policy:     &gymtest.FixedPolicy{},
		LogPath:    filepath.Join(t.TempDir(), "eval.jsonl"),
		EverySteps: 10,
		Logger:     quietLogger(),
	})
	require.NoError(t, e.TrainingEnd(0))
	assert.Zero(t, envCalls)
}
