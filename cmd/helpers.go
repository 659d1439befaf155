package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/curriculum"
	"github.com/pokered-rl/trainctl/internal/gym"
	"github.com/pokered-rl/trainctl/internal/rewards"
	"github.com/pokered-rl/trainctl/internal/stream"
	"github.com/pokered-rl/trainctl/internal/trainer"
)

// resolveEnvBackend picks the environment backend: an explicit name, or
// the single registered one.
func resolveEnvBackend(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	backends := gym.Backends()
	switch len(backends) {
	case 0:
		return "", fmt.Errorf("no environment backend registered (build with one linked in)")
	case 1:
		return backends[0], nil
	default:
		return "", fmt.Errorf("multiple environment backends registered (%s); pick one with --env-backend", strings.Join(backends, ", "))
	}
}

// resolveAlgo picks the algorithm backend the same way.
func resolveAlgo(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	backends := trainer.Backends()
	switch len(backends) {
	case 0:
		return "", fmt.Errorf("no algorithm backend registered (build with one linked in)")
	case 1:
		return backends[0], nil
	default:
		return "", fmt.Errorf("multiple algorithm backends registered (%s); pick one with --algo", strings.Join(backends, ", "))
	}
}

// loadTask resolves a --task value: a path to a task file, else a
// registry name.
func loadTask(nameOrPath string) (curriculum.Task, error) {
	if _, err := os.Stat(nameOrPath); err == nil {
		return curriculum.FromFile(nameOrPath)
	}
	return curriculum.Get(nameOrPath)
}

// resolveOptionalTask is loadTask for flags where no task is a valid
// choice.
func resolveOptionalTask(nameOrPath string) (*curriculum.Task, error) {
	if nameOrPath == "" {
		return nil, nil
	}
	task, err := loadTask(nameOrPath)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// buildEnv constructs one environment worker, optionally wrapped with
// map streaming.
func buildEnv(backend string, envConf config.EnvConfig, rew rewards.Config, task *curriculum.Task, rank int, streamOn bool) (gym.Environment, error) {
	env, err := gym.New(backend, gym.Config{
		Env:     envConf,
		Rewards: rew,
		Task:    task,
		Rank:    rank,
	})
	if err != nil {
		return nil, err
	}
	if streamOn {
		return stream.Wrap(env, stream.DefaultMetadata(rank), log), nil
	}
	return env, nil
}

// pathCheck names one file that must exist before setup starts.
type pathCheck struct {
	label string
	path  string
}

// checkFiles returns one error naming every missing path.
func checkFiles(checks ...pathCheck) error {
	var missing []string
	for _, c := range checks {
		if _, err := os.Stat(c.path); err != nil {
			missing = append(missing, fmt.Sprintf("%s not found at %s", c.label, c.path))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s", strings.Join(missing, "; "))
	}
	return nil
}

// stringifyParams flattens a config section into tracking parameters.
func stringifyParams(prefix string, section map[string]any) map[string]string {
	params := make(map[string]string, len(section))
	for key, value := range section {
		if value == nil {
			continue
		}
		params[prefix+key] = fmt.Sprint(value)
	}
	return params
}
