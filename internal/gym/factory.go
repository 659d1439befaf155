package gym

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pokered-rl/trainctl/internal/config"
	"github.com/pokered-rl/trainctl/internal/curriculum"
	"github.com/pokered-rl/trainctl/internal/rewards"
)

// Config is everything a backend needs to construct one environment
// instance.
type Config struct {
	Env     config.EnvConfig
	Rewards rewards.Config

	// Task narrows the run to a curriculum scenario; nil means free play.
	Task *curriculum.Task

	// Rank is the worker index inside a vectorized group.
	Rank int
}

// Factory constructs one environment for a backend.
type Factory func(cfg Config) (Environment, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Factory)
)

// Register makes a backend available under the given name. Follows the
// database/sql driver convention: call from the backend package's init.
func Register(name string, factory Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if factory == nil {
		panic("gym: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("gym: Register called twice for backend " + name)
	}
	backends[name] = factory
}

// New constructs an environment from a registered backend.
func New(backend string, cfg Config) (Environment, error) {
	backendsMu.RLock()
	factory, ok := backends[backend]
	backendsMu.RUnlock()

	if !ok {
		available := Backends()
		if len(available) == 0 {
			return nil, fmt.Errorf("no environment backend registered (build with one linked in)")
		}
		return nil, fmt.Errorf("unknown environment backend %q (registered: %s)", backend, strings.Join(available, ", "))
	}
	return factory(cfg)
}

// Backends lists the registered backend names sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
