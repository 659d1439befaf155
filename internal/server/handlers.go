package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pokered-rl/trainctl/internal/curriculum"
	"github.com/pokered-rl/trainctl/internal/rundir"
	"github.com/pokered-rl/trainctl/internal/supervisor"
)

func (s *Server) hasFrontend() bool {
	info, err := os.Stat(s.frontendDir)
	return err == nil && info.IsDir()
}

func (s *Server) root(c *gin.Context) {
	index := filepath.Join(s.frontendDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "UI not built"})
		return
	}
	c.File(index)
}

func (s *Server) startRun(c *gin.Context) {
	var req supervisor.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.manager.Start(req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, supervisor.ErrAlreadyRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": true, "run": info})
}

func (s *Server) stopRun(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.Stop())
}

// getStatus combines the process view with the most recent on-disk
// artifacts. With ?run= it reads that run's directory; otherwise it
// follows the supervisor's active run info.
func (s *Server) getStatus(c *gin.Context) {
	proc := s.manager.Status()

	var statusFile, evalLog, runDirPath string
	if run := c.Query("run"); run != "" {
		d := rundir.New(s.manager.RunsDir(), run)
		statusFile, evalLog, runDirPath = d.StatusFile(), d.EvalLog(), d.Path()
	} else if proc.Run != nil {
		statusFile = proc.Run.StatusFile
		evalLog = proc.Run.EvalLog
		runDirPath = proc.Run.RunDir
	}

	var snapshot *rundir.Snapshot
	evals := []rundir.EvalRecord{}
	checkpoints := []rundir.Checkpoint{}
	if statusFile != "" {
		snapshot = rundir.ReadStatus(statusFile)
	}
	if evalLog != "" {
		evals = rundir.ReadEvalLog(evalLog, 10)
	}
	if runDirPath != "" {
		checkpoints = rundir.ListCheckpoints(runDirPath)
	}

	c.JSON(http.StatusOK, gin.H{
		"process":     proc,
		"status":      snapshot,
		"evals":       evals,
		"checkpoints": checkpoints,
	})
}

func (s *Server) getEvals(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	var evalLog string
	if run := c.Query("run"); run != "" {
		evalLog = rundir.New(s.manager.RunsDir(), run).EvalLog()
	} else if proc := s.manager.Status(); proc.Run != nil {
		evalLog = proc.Run.EvalLog
	}
	if evalLog == "" {
		c.JSON(http.StatusOK, []rundir.EvalRecord{})
		return
	}
	c.JSON(http.StatusOK, rundir.ReadEvalLog(evalLog, limit))
}

func (s *Server) getCheckpoints(c *gin.Context) {
	var runDirPath string
	if run := c.Query("run"); run != "" {
		runDirPath = rundir.New(s.manager.RunsDir(), run).Path()
	} else if proc := s.manager.Status(); proc.Run != nil {
		runDirPath = proc.Run.RunDir
	}
	if runDirPath == "" {
		c.JSON(http.StatusOK, []rundir.Checkpoint{})
		return
	}
	c.JSON(http.StatusOK, rundir.ListCheckpoints(runDirPath))
}

func (s *Server) getRuns(c *gin.Context) {
	c.JSON(http.StatusOK, rundir.CollectRuns(s.manager.RunsDir()))
}

func (s *Server) getTasks(c *gin.Context) {
	tasks := curriculum.All()
	payload := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		payload = append(payload, task.Map())
	}
	c.JSON(http.StatusOK, payload)
}
