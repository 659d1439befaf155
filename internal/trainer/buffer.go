package trainer

import (
	"fmt"

	"github.com/pokered-rl/trainctl/internal/gym"
)

// Transition is one environment step as stored in the rollout buffer.
type Transition struct {
	Obs        gym.Observation
	Action     int
	Reward     float64
	Terminated bool
	Truncated  bool
}

// Buffer accumulates one rollout across the vectorized environments:
// NSteps rows of NumEnvs transitions each. Resuming a run with a
// different parallelism must resize the buffer before any collection,
// otherwise row widths no longer match the environment count.
type Buffer struct {
	nSteps  int
	numEnvs int
	rows    [][]Transition
	pos     int
}

func NewBuffer(nSteps, numEnvs int) *Buffer {
	b := &Buffer{}
	b.Resize(nSteps, numEnvs)
	return b
}

// Resize reallocates the buffer for the given dimensions and resets the
// fill position. A call with the current dimensions only resets.
func (b *Buffer) Resize(nSteps, numEnvs int) {
	if nSteps < 1 {
		nSteps = 1
	}
	if numEnvs < 1 {
		numEnvs = 1
	}
	if nSteps != b.nSteps || numEnvs != b.numEnvs {
		b.nSteps = nSteps
		b.numEnvs = numEnvs
		b.rows = make([][]Transition, nSteps)
		for i := range b.rows {
			b.rows[i] = make([]Transition, numEnvs)
		}
	}
	b.Reset()
}

// Reset clears the fill position; capacity is unchanged.
func (b *Buffer) Reset() {
	b.pos = 0
}

// Add appends one vectorized step. The row width must match the
// environment count.
func (b *Buffer) Add(row []Transition) error {
	if len(row) != b.numEnvs {
		return fmt.Errorf("row has %d transitions, buffer expects %d", len(row), b.numEnvs)
	}
	if b.pos >= b.nSteps {
		return fmt.Errorf("rollout buffer is full (%d steps)", b.nSteps)
	}
	copy(b.rows[b.pos], row)
	b.pos++
	return nil
}

// Full reports whether the rollout is complete.
func (b *Buffer) Full() bool {
	return b.pos >= b.nSteps
}

// Len is the number of filled vectorized steps.
func (b *Buffer) Len() int {
	return b.pos
}

// NSteps is the per-environment rollout length.
func (b *Buffer) NSteps() int {
	return b.nSteps
}

// NumEnvs is the row width.
func (b *Buffer) NumEnvs() int {
	return b.numEnvs
}

// Rows returns the filled portion of the rollout.
func (b *Buffer) Rows() [][]Transition {
	return b.rows[:b.pos]
}
