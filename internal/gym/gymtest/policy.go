package gymtest

import "github.com/pokered-rl/trainctl/internal/gym"

// FixedPolicy returns the same action every time and records how it was
// asked.
type FixedPolicy struct {
	Action int

	Calls              int
	DeterministicCalls int
}

func (p *FixedPolicy) Predict(obs gym.Observation, deterministic bool) (int, error) {
	p.Calls++
	if deterministic {
		p.DeterministicCalls++
	}
	return p.Action, nil
}
