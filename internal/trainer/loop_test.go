package trainer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/evaluator"
	"github.com/pokered-rl/trainctl/internal/gym"
	"github.com/pokered-rl/trainctl/internal/gym/gymtest"
	"github.com/pokered-rl/trainctl/internal/rundir"
	"github.com/pokered-rl/trainctl/internal/status"
)

// stubAgent is a do-nothing Agent recording what the loop hands it.
type stubAgent struct {
	mu      sync.Mutex
	updates int
	saves   []string
	metrics map[string]float64
}

func (a *stubAgent) Predict(obs gym.Observation, deterministic bool) (int, error) {
	return 0, nil
}

func (a *stubAgent) Update(ctx context.Context, rollout *Buffer) (map[string]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updates++
	if a.metrics != nil {
		return a.metrics, nil
	}
	return map[string]float64{"train/value_loss": 0.1}, nil
}

func (a *stubAgent) Save(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saves = append(a.saves, path)
	return os.WriteFile(path, []byte("weights"), 0o644)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func scriptedEnvs(n, episodeLen int) []gym.Environment {
	envs := make([]gym.Environment, n)
	for i := range envs {
		envs[i] = &gymtest.ScriptedEnv{EpisodeLen: episodeLen, RewardPerStep: 1}
	}
	return envs
}

// stepRecorder captures every Step notification.
type stepRecorder struct {
	starts int
	steps  []int64
	ends   []int64
}

func (r *stepRecorder) TrainingStart(timesteps int64) error { r.starts++; return nil }
func (r *stepRecorder) Step(timesteps int64) error          { r.steps = append(r.steps, timesteps); return nil }
func (r *stepRecorder) TrainingEnd(timesteps int64) error   { r.ends = append(r.ends, timesteps); return nil }

func TestLoopRunsToTarget(t *testing.T) {
	agent := &stubAgent{}
	rec := &stepRecorder{}
	final := filepath.Join(t.TempDir(), "final.ckpt")

	loop, err := NewLoop(LoopConfig{
		Agent:     agent,
		Envs:      scriptedEnvs(4, 10),
		NSteps:    5,
		FinalPath: final,
		Callbacks: []Callback{rec},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, loop.Run(context.Background(), 100))

	// 4 envs advance the counter by 4 per vector step; 5 steps per
	// rollout makes 20 timesteps per update.
	assert.Equal(t, int64(100), loop.Timesteps())
	assert.Equal(t, 5, agent.updates)
	assert.Equal(t, 1, rec.starts)
	assert.Equal(t, []int64{100}, rec.ends)
	assert.Len(t, rec.steps, 25)
	assert.Equal(t, int64(4), rec.steps[0])
	assert.FileExists(t, final)
}

func TestLoopSeedsEnvsByRank(t *testing.T) {
	envs := scriptedEnvs(3, 100)
	loop, err := NewLoop(LoopConfig{
		Agent:  &stubAgent{},
		Envs:   envs,
		NSteps: 2,
		Seed:   10,
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, loop.Run(context.Background(), 6))

	for i, env := range envs {
		scripted := env.(*gymtest.ScriptedEnv)
		require.NotEmpty(t, scripted.Seeds)
		assert.Equal(t, int64(10+i), scripted.Seeds[0])
	}
}

func TestLoopResumePrimesCounter(t *testing.T) {
	loop, err := NewLoop(LoopConfig{
		Agent:          &stubAgent{},
		Envs:           scriptedEnvs(2, 50),
		NSteps:         5,
		StartTimesteps: 90,
		Logger:         quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, loop.Run(context.Background(), 100))
	assert.Equal(t, int64(100), loop.Timesteps())
}

func TestLoopCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final := filepath.Join(t.TempDir(), "final.ckpt")
	rec := &stepRecorder{}
	loop, err := NewLoop(LoopConfig{
		Agent:     &stubAgent{},
		Envs:      scriptedEnvs(2, 50),
		NSteps:    5,
		FinalPath: final,
		Callbacks: []Callback{rec},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	err = loop.Run(ctx, 1000)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, final, "interrupted runs never write the final artifact")
	assert.Empty(t, rec.ends, "end callbacks are the caller's choice on interrupt")
}

func TestLoopTracksEpisodeMeans(t *testing.T) {
	agent := &stubAgent{metrics: map[string]float64{"train/loss": 1.5}}
	loop, err := NewLoop(LoopConfig{
		Agent:  agent,
		Envs:   scriptedEnvs(2, 5), // episodes end during collection
		NSteps: 10,
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, loop.Run(context.Background(), 40))

	metrics := loop.LatestMetrics()
	assert.Equal(t, 1.5, metrics["train/loss"])
	assert.Equal(t, 5.0, metrics["rollout/ep_rew_mean"], "RewardPerStep 1 over 5-step episodes")
	assert.Equal(t, 5.0, metrics["rollout/ep_len_mean"])
}

func TestCheckpointCallbackCadence(t *testing.T) {
	agent := &stubAgent{}
	dir := t.TempDir()
	cb := NewCheckpointCallback(agent, dir, "poke", 3, quietLogger())

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, cb.Step(i*4))
	}

	// Saves on every third call: timesteps 12, 24, 36
	require.Len(t, agent.saves, 3)
	assert.Equal(t, filepath.Join(dir, "poke_12_steps.ckpt"), agent.saves[0])
	assert.Equal(t, filepath.Join(dir, "poke_36_steps.ckpt"), agent.saves[2])
}

type metricsRecorder struct {
	mu    sync.Mutex
	calls []int64
}

func (r *metricsRecorder) LogMetrics(step int64, metrics map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, step)
	return nil
}

func TestTrackingCallbackCadence(t *testing.T) {
	tracker := &metricsRecorder{}
	source := staticSource{"train/loss": 1.0}
	cb := NewTrackingCallback(tracker, source, 100, quietLogger())

	require.NoError(t, cb.TrainingStart(0))
	for step := int64(10); step <= 350; step += 10 {
		require.NoError(t, cb.Step(step))
	}
	require.NoError(t, cb.TrainingEnd(350))

	assert.Equal(t, []int64{100, 200, 300, 350}, tracker.calls)
}

type staticSource map[string]float64

func (s staticSource) LatestMetrics() map[string]float64 { return s }

// End to end: the loop drives the status writer and periodic evaluator
// exactly as the train command wires them, against scripted
// environments.
func TestLoopWithStatusAndEvaluator(t *testing.T) {
	runDir := t.TempDir()
	statusPath := filepath.Join(runDir, "status.json")
	evalPath := filepath.Join(runDir, "eval.jsonl")

	agent := &stubAgent{}
	trainConf := config.DefaultTrain()
	trainConf.NumEnvs = 4
	trainConf.BatchSize = 8

	writer := status.NewWriter(statusPath, 400, "e2e_run", trainConf, config.DefaultEnv(), time.Second)
	writer.SetMetricsSource(staticSource{"train/value_loss": 0.1})

	evalEnv := &gymtest.ScriptedEnv{EpisodeLen: 5, RewardPerStep: 2}
	eval := evaluator.New(evaluator.Config{
		EnvFunc:    func() (gym.Environment, error) { return evalEnv, nil },
		Policy:     agent,
		LogPath:    evalPath,
		EverySteps: 50,
		Episodes:   2,
		Status:     writer,
		Logger:     quietLogger(),
	})

	loop, err := NewLoop(LoopConfig{
		Agent:     agent,
		Envs:      scriptedEnvs(4, 25),
		NSteps:    25,
		FinalPath: filepath.Join(runDir, rundir.FinalCheckpointName),
		Callbacks: []Callback{writer, eval},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	writer.SetMetricsSource(loop)

	require.NoError(t, loop.Run(context.Background(), 400))

	// Timesteps advance by 4; the cadence of 50 triggers at 52, 104,
	// 156, 208, 260, 312 and 364.
	records := rundir.ReadEvalLog(evalPath, 0)
	require.Len(t, records, 7)
	assert.Equal(t, int64(364), records[0].TimestepsWhenRan)
	assert.Equal(t, int64(52), records[6].TimestepsWhenRan)
	for _, rec := range records {
		assert.Len(t, rec.Rewards, 2)
		assert.Len(t, rec.Lengths, 2)
	}

	snap := rundir.ReadStatus(statusPath)
	require.NotNil(t, snap)
	assert.Equal(t, rundir.StatusFinished, snap.Status)
	assert.Equal(t, int64(400), snap.TimestepsDone)
	require.NotNil(t, snap.LastEval)
	assert.Equal(t, records[0].TimestepsWhenRan, snap.LastEval.TimestepsWhenRan)
	assert.Equal(t, records[0].MeanReward, snap.LastEval.MeanReward)
}
