package supervisor

import "sync"

// tailLines is how many recent output lines each stream retains.
const tailLines = 200

// tailBuffer is a fixed-capacity ring of the most recent lines. Pump
// goroutines append while status readers snapshot, so access is
// mutex-guarded.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	head  int
	count int
}

func newTailBuffer(capacity int) *tailBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &tailBuffer{lines: make([]string, capacity)}
}

// Append adds a line, evicting the oldest once full.
func (t *tailBuffer) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines[t.head] = line
	t.head = (t.head + 1) % len(t.lines)
	if t.count < len(t.lines) {
		t.count++
	}
}

// Lines returns the retained lines oldest first.
func (t *tailBuffer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, t.count)
	start := t.head - t.count
	if start < 0 {
		start += len(t.lines)
	}
	for i := 0; i < t.count; i++ {
		out = append(out, t.lines[(start+i)%len(t.lines)])
	}
	return out
}
