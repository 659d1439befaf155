//go:build !windows

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokered-rl/trainctl/internal/rundir"
	"github.com/pokered-rl/trainctl/internal/supervisor"
)

func testServer(t *testing.T, trainer []string) (*Server, *supervisor.Manager, string) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	runsDir := t.TempDir()
	manager := supervisor.NewManager(runsDir, log)
	manager.TrainerCommand = trainer
	manager.StopGrace = 2 * time.Second
	return New(manager, log), manager, runsDir
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestStartStopRoundTrip(t *testing.T) {
	srv, manager, _ := testServer(t, []string{"sh", "-c", "sleep 30", "trainer"})

	rec := doJSON(t, srv, http.MethodPost, "/api/run", `{"run_name": "api_run"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var started struct {
		Started bool                `json:"started"`
		Run     *supervisor.RunInfo `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.True(t, started.Started)
	require.NotNil(t, started.Run)
	assert.Equal(t, "api_run", started.Run.RunName)
	assert.Positive(t, started.Run.PID)

	rec = doJSON(t, srv, http.MethodPost, "/api/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stop supervisor.StopResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stop))
	assert.True(t, stop.Stopped)
	assert.False(t, manager.Status().Running)
}

func TestStartConflictReturns409(t *testing.T) {
	srv, manager, _ := testServer(t, []string{"sh", "-c", "sleep 30", "trainer"})

	rec := doJSON(t, srv, http.MethodPost, "/api/run", `{"run_name": "one"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/run", `{"run_name": "two"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already active")

	manager.Stop()
}

func TestStartRejectsBadRequest(t *testing.T) {
	srv, _, _ := testServer(t, []string{"sh", "-c", "echo never", "trainer"})

	rec := doJSON(t, srv, http.MethodPost, "/api/run", `{"run_name": "bad/name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/run", `{"num_envs": "eight"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopWhenIdle(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stop supervisor.StopResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stop))
	assert.False(t, stop.Stopped)
	assert.Equal(t, "No active process.", stop.Message)
}

func TestStatusForNamedRun(t *testing.T) {
	srv, _, runsDir := testServer(t, nil)

	d := rundir.New(runsDir, "old_run")
	require.NoError(t, d.Ensure())
	require.NoError(t, rundir.AtomicWriteJSON(d.StatusFile(), rundir.Snapshot{
		RunName: "old_run", Status: rundir.StatusFinished, TimestepsDone: 123,
	}))
	require.NoError(t, rundir.AppendJSONL(d.EvalLog(), rundir.EvalRecord{TimestepsWhenRan: 100}))

	rec := doJSON(t, srv, http.MethodGet, "/api/status?run=old_run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Process supervisor.ProcessStatus `json:"process"`
		Status  *rundir.Snapshot         `json:"status"`
		Evals   []rundir.EvalRecord      `json:"evals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.False(t, payload.Process.Running)
	require.NotNil(t, payload.Status)
	assert.Equal(t, int64(123), payload.Status.TimestepsDone)
	require.Len(t, payload.Evals, 1)
}

func TestStatusWithoutRunIsTolerant(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "null", string(payload["status"]))
	assert.Equal(t, "[]", string(payload["evals"]))
	assert.Equal(t, "[]", string(payload["checkpoints"]))
}

func TestEvalsLimitAndOrder(t *testing.T) {
	srv, _, runsDir := testServer(t, nil)

	d := rundir.New(runsDir, "eval_run")
	require.NoError(t, d.Ensure())
	for i := 1; i <= 4; i++ {
		require.NoError(t, rundir.AppendJSONL(d.EvalLog(), rundir.EvalRecord{TimestepsWhenRan: int64(i * 10)}))
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/evals?run=eval_run&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []rundir.EvalRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, int64(40), records[0].TimestepsWhenRan)
	assert.Equal(t, int64(30), records[1].TimestepsWhenRan)
}

func TestEvalsRejectsBadLimit(t *testing.T) {
	srv, _, _ := testServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/api/evals?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckpointsEndpoint(t *testing.T) {
	srv, _, runsDir := testServer(t, nil)

	d := rundir.New(runsDir, "ckpt_run")
	require.NoError(t, d.Ensure())
	require.NoError(t, rundir.AtomicWriteJSON(d.Path()+"/poke_100_steps.ckpt", map[string]string{"w": "x"}))

	rec := doJSON(t, srv, http.MethodGet, "/api/checkpoints?run=ckpt_run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var checkpoints []rundir.Checkpoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checkpoints))
	require.Len(t, checkpoints, 1)
	assert.Equal(t, "poke_100_steps.ckpt", checkpoints[0].Name)
	require.NotNil(t, checkpoints[0].Steps)
	assert.Equal(t, int64(100), *checkpoints[0].Steps)
}

func TestRunsEndpoint(t *testing.T) {
	srv, _, runsDir := testServer(t, nil)

	require.NoError(t, rundir.New(runsDir, "some_run").Ensure())

	rec := doJSON(t, srv, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []rundir.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "some_run", runs[0].Name)
}

func TestTasksEndpoint(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 6)
	names := make([]string, 0, len(tasks))
	for _, task := range tasks {
		names = append(names, task["name"].(string))
	}
	assert.Contains(t, names, "gym_quest")
	assert.Contains(t, names, "full_game")
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
