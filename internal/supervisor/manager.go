package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pokered-rl/trainctl/internal/rundir"
	timeutils "github.com/pokered-rl/trainctl/internal/time"
)

// DefaultStopGrace is how long Stop waits after the interrupt before
// escalating to a hard kill.
const DefaultStopGrace = 15 * time.Second

// ErrAlreadyRunning is returned by Start while a previous training
// process is still alive.
var ErrAlreadyRunning = errors.New("a training run is already active; stop it before starting another")

// RunInfo describes a launched training process. It is immutable once
// published.
type RunInfo struct {
	RunName    string   `json:"run_name"`
	RunDir     string   `json:"run_dir"`
	StatusFile string   `json:"status_file"`
	EvalLog    string   `json:"eval_log"`
	StartedAt  float64  `json:"started_at"`
	PID        int      `json:"pid"`
	Command    []string `json:"command"`
}

// ProcessStatus is the supervisor's view of the training process.
type ProcessStatus struct {
	Running    bool     `json:"running"`
	PID        *int     `json:"pid,omitempty"`
	Run        *RunInfo `json:"run"`
	StdoutTail []string `json:"stdout_tail"`
	StderrTail []string `json:"stderr_tail"`
}

// StopResult reports the outcome of a stop request.
type StopResult struct {
	Stopped bool     `json:"stopped"`
	Message string   `json:"message,omitempty"`
	Run     *RunInfo `json:"run,omitempty"`
}

// Manager supervises at most one training subprocess at a time. It
// captures the trailing output of both streams, mirrors them to log
// files inside the run directory, and stops the process with an
// interrupt before escalating to a kill.
type Manager struct {
	// TrainerCommand is the argv prefix the training flags are appended
	// to. Defaults to re-invoking the current binary with "train".
	TrainerCommand []string

	// StopGrace overrides the interrupt-to-kill grace period.
	StopGrace time.Duration

	runsDir string
	log     logrus.FieldLogger
	now     func() time.Time

	mu         sync.Mutex
	cmd        *exec.Cmd
	runInfo    *RunInfo
	done       chan struct{}
	stdoutTail *tailBuffer
	stderrTail *tailBuffer
}

// NewManager returns a manager that places run directories under
// runsDir.
func NewManager(runsDir string, log logrus.FieldLogger) *Manager {
	return &Manager{
		runsDir:    runsDir,
		log:        log,
		now:        time.Now,
		stdoutTail: newTailBuffer(tailLines),
		stderrTail: newTailBuffer(tailLines),
	}
}

// Start validates the request, prepares the run directory and launches
// the training process. It fails if a process is still running.
func (m *Manager) Start(req RunRequest) (*RunInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.aliveLocked() {
		return nil, ErrAlreadyRunning
	}

	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	dir := rundir.Dir{Root: m.runsDir, Name: req.RunName}
	if err := dir.Ensure(); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	argv := m.buildCommand(req, dir)
	cmd := exec.Command(argv[0], argv[1:]...)
	setupProcAttr(cmd)

	stdoutLog, err := openTranscript(dir.StdoutLog())
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout log: %w", err)
	}
	stderrLog, err := openTranscript(dir.StderrLog())
	if err != nil {
		stdoutLog.Close()
		return nil, fmt.Errorf("failed to open stderr log: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdoutLog.Close()
		stderrLog.Close()
		return nil, fmt.Errorf("failed to attach stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdoutLog.Close()
		stderrLog.Close()
		return nil, fmt.Errorf("failed to attach stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdoutLog.Close()
		stderrLog.Close()
		return nil, fmt.Errorf("failed to start training process: %w", err)
	}

	info := &RunInfo{
		RunName:    req.RunName,
		RunDir:     dir.Path(),
		StatusFile: dir.StatusFile(),
		EvalLog:    dir.EvalLog(),
		StartedAt:  timeutils.UnixSeconds(m.now()),
		PID:        cmd.Process.Pid,
		Command:    argv,
	}

	// Fresh tails per launch so a previous run's output does not bleed
	// into the new run's status view.
	m.stdoutTail = newTailBuffer(tailLines)
	m.stderrTail = newTailBuffer(tailLines)

	done := make(chan struct{})
	var pumps sync.WaitGroup
	pumps.Add(2)
	go m.pump(stdout, stdoutLog, m.stdoutTail, &pumps)
	go m.pump(stderr, stderrLog, m.stderrTail, &pumps)
	go func() {
		pumps.Wait()
		if err := cmd.Wait(); err != nil {
			m.log.WithError(err).Info("training process exited")
		} else {
			m.log.Info("training process exited cleanly")
		}
		close(done)
	}()

	m.cmd = cmd
	m.runInfo = info
	m.done = done
	m.log.WithFields(logrus.Fields{"run_name": req.RunName, "pid": info.PID}).Info("training process started")
	return info, nil
}

// Stop interrupts the running process and waits for it to exit. If it
// does not exit within the grace period it is killed. The run info of
// the stopped process is returned and the active slot is cleared.
//
// The grace wait happens outside the manager lock so Status stays
// responsive while a stop is in flight.
func (m *Manager) Stop() StopResult {
	m.mu.Lock()
	if !m.aliveLocked() {
		m.mu.Unlock()
		return StopResult{Stopped: false, Message: "No active process."}
	}
	cmd := m.cmd
	done := m.done
	info := m.runInfo
	if err := interrupt(cmd); err != nil {
		m.log.WithError(err).Warn("failed to interrupt training process")
	}
	m.mu.Unlock()

	grace := m.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	select {
	case <-done:
	case <-time.After(grace):
		m.log.Warn("training process did not exit after interrupt; killing")
		if err := cmd.Process.Kill(); err != nil {
			m.log.WithError(err).Warn("failed to kill training process")
		}
		<-done
	}

	m.mu.Lock()
	// A racing Start may have installed a new process once this one
	// exited; only clear the slot if it is still ours.
	if m.cmd == cmd {
		m.cmd = nil
		m.runInfo = nil
		m.done = nil
	}
	m.mu.Unlock()

	m.log.WithField("run_name", info.RunName).Info("training process stopped")
	return StopResult{Stopped: true, Run: info}
}

// Status reports whether a process is running together with the last
// run info and the trailing output lines.
func (m *Manager) Status() ProcessStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := ProcessStatus{
		Running:    m.aliveLocked(),
		Run:        m.runInfo,
		StdoutTail: m.stdoutTail.Lines(),
		StderrTail: m.stderrTail.Lines(),
	}
	if st.Running {
		pid := m.cmd.Process.Pid
		st.PID = &pid
	}
	return st
}

// RunsDir returns the root directory run directories are created under.
func (m *Manager) RunsDir() string {
	return m.runsDir
}

// aliveLocked reports whether the launched process is still running.
// Callers must hold mu.
func (m *Manager) aliveLocked() bool {
	if m.cmd == nil || m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Manager) trainerCommand() []string {
	if len(m.TrainerCommand) > 0 {
		return m.TrainerCommand
	}
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return []string{exe, "train"}
}

func (m *Manager) buildCommand(req RunRequest, dir rundir.Dir) []string {
	argv := append([]string{}, m.trainerCommand()...)
	argv = append(argv,
		"--config", req.Config,
		"--rom", req.Rom,
		"--state", req.State,
		"--run-name", req.RunName,
		"--output-dir", m.runsDir,
		"--num-envs", strconv.Itoa(req.NumEnvs),
		"--batch-size", strconv.Itoa(req.BatchSize),
		"--total-multiplier", strconv.Itoa(req.TotalMultiplier),
		"--status-file", dir.StatusFile(),
		"--status-interval", strconv.FormatFloat(req.StatusInterval, 'f', -1, 64),
		"--eval-log", dir.EvalLog(),
		"--eval-episodes", strconv.Itoa(req.EvalEpisodes),
	)
	if req.Preset != "" {
		argv = append(argv, "--preset", req.Preset)
	}
	if req.CheckpointFreq > 0 {
		argv = append(argv, "--checkpoint-freq", strconv.FormatInt(req.CheckpointFreq, 10))
	}
	if req.EvalEverySteps > 0 {
		argv = append(argv, "--eval-every-steps", strconv.FormatInt(req.EvalEverySteps, 10))
	}
	if req.EvalMaxSteps > 0 {
		argv = append(argv, "--eval-max-steps", strconv.Itoa(req.EvalMaxSteps))
	}
	if req.EvalStream {
		argv = append(argv, "--eval-stream")
	}
	if req.Stream != nil && !*req.Stream {
		argv = append(argv, "--no-stream")
	}
	if req.Track {
		argv = append(argv, "--track")
	}
	if req.Seed != nil {
		argv = append(argv, "--seed", strconv.FormatInt(*req.Seed, 10))
	}
	return argv
}

// openTranscript opens a run transcript for appending, so restarting a
// run under the same name extends its logs instead of truncating them.
func openTranscript(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// pump copies process output to the log file line by line while feeding
// the in-memory tail. The log file is closed when the stream ends.
func (m *Manager) pump(r io.Reader, logFile *os.File, tail *tailBuffer, wg *sync.WaitGroup) {
	defer wg.Done()
	defer logFile.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(logFile, line)
		tail.Append(line)
	}
	if err := scanner.Err(); err != nil {
		m.log.WithError(err).Debug("output pump ended with error")
	}
}
