package rundir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FinalCheckpointName is the artifact written on normal completion.
const FinalCheckpointName = "final.ckpt"

var stepsPattern = regexp.MustCompile(`_(\d+)_steps\.`)

// Checkpoint describes one saved policy artifact.
type Checkpoint struct {
	Path  string  `json:"path"`
	Name  string  `json:"name"`
	MTime float64 `json:"mtime"`
	Size  int64   `json:"size"`
	Steps *int64  `json:"steps"`
}

// CheckpointFileName builds the periodic artifact name for a step count.
func CheckpointFileName(prefix string, steps int64) string {
	return fmt.Sprintf("%s_%d_steps.ckpt", prefix, steps)
}

// ParseSteps extracts the step count embedded in a checkpoint name.
// Returns nil when the name carries none (e.g. final.ckpt).
func ParseSteps(name string) *int64 {
	m := stepsPattern.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	steps, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &steps
}

func isCheckpointName(name string) bool {
	return strings.Contains(name, "_steps.") || strings.HasPrefix(name, "final.")
}

// ListCheckpoints returns the checkpoint artifacts in a run directory,
// newest first by modification time. A missing directory lists empty.
func ListCheckpoints(dir string) []Checkpoint {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []Checkpoint{}
	}

	results := []Checkpoint{}
	for _, entry := range entries {
		if entry.IsDir() || !isCheckpointName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		results = append(results, Checkpoint{
			Path:  filepath.Join(dir, entry.Name()),
			Name:  entry.Name(),
			MTime: float64(info.ModTime().UnixNano()) / 1e9,
			Size:  info.Size(),
			Steps: ParseSteps(entry.Name()),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].MTime != results[j].MTime {
			return results[i].MTime > results[j].MTime
		}
		return results[i].Name > results[j].Name
	})
	return results
}

// LatestCheckpoint returns the newest artifact in a run directory, nil
// when there is none.
func LatestCheckpoint(dir string) *Checkpoint {
	list := ListCheckpoints(dir)
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

// FindLatestCheckpoint scans every run under root and returns the newest
// artifact anywhere, along with the run name it belongs to.
func FindLatestCheckpoint(root string) (*Checkpoint, string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, ""
	}

	var best *Checkpoint
	var bestRun string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		latest := LatestCheckpoint(filepath.Join(root, entry.Name()))
		if latest == nil {
			continue
		}
		if best == nil || latest.MTime > best.MTime {
			best = latest
			bestRun = entry.Name()
		}
	}
	return best, bestRun
}
