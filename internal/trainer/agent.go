package trainer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pokered-rl/trainctl/internal/gym"
)

// Agent is the policy-optimization collaborator. The loop collects
// rollouts and hands them over; what the agent does with them is its
// own business. Update returns the optimizer metrics for the status
// snapshot (train/value_loss and friends).
type Agent interface {
	Predict(obs gym.Observation, deterministic bool) (int, error)
	Update(ctx context.Context, rollout *Buffer) (map[string]float64, error)
	Save(path string) error
}

// AgentConfig carries the hyperparameters a backend needs to construct
// or load an agent.
type AgentConfig struct {
	NSteps    int
	NumEnvs   int
	BatchSize int
	NEpochs   int
	Gamma     float64
	EntCoef   float64
	Seed      int64
}

// AgentBackend constructs fresh agents and loads checkpointed ones.
type AgentBackend struct {
	New  func(cfg AgentConfig) (Agent, error)
	Load func(path string, cfg AgentConfig) (Agent, error)
}

var (
	agentsMu sync.RWMutex
	agents   = make(map[string]AgentBackend)
)

// RegisterBackend makes an algorithm available under the given name,
// typically from the backend package's init.
func RegisterBackend(name string, backend AgentBackend) {
	agentsMu.Lock()
	defer agentsMu.Unlock()
	if backend.New == nil || backend.Load == nil {
		panic("trainer: RegisterBackend with nil constructor")
	}
	if _, dup := agents[name]; dup {
		panic("trainer: RegisterBackend called twice for " + name)
	}
	agents[name] = backend
}

// NewAgent constructs a fresh agent from a registered backend.
func NewAgent(name string, cfg AgentConfig) (Agent, error) {
	backend, err := lookupBackend(name)
	if err != nil {
		return nil, err
	}
	return backend.New(cfg)
}

// LoadAgent restores an agent from a checkpoint artifact.
func LoadAgent(name, path string, cfg AgentConfig) (Agent, error) {
	backend, err := lookupBackend(name)
	if err != nil {
		return nil, err
	}
	return backend.Load(path, cfg)
}

// Backends lists the registered algorithm names sorted.
func Backends() []string {
	agentsMu.RLock()
	defer agentsMu.RUnlock()

	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupBackend(name string) (AgentBackend, error) {
	agentsMu.RLock()
	backend, ok := agents[name]
	agentsMu.RUnlock()

	if !ok {
		available := Backends()
		if len(available) == 0 {
			return AgentBackend{}, fmt.Errorf("no algorithm backend registered (build with one linked in)")
		}
		return AgentBackend{}, fmt.Errorf("unknown algorithm backend %q (registered: %s)", name, strings.Join(available, ", "))
	}
	return backend, nil
}
