package rundir

import (
	"os"
	"sort"
)

// RunSummary is one entry in the runs listing used by the dashboard and
// the runs command.
type RunSummary struct {
	Name             string    `json:"name"`
	Path             string    `json:"path"`
	LatestCheckpoint *string   `json:"latest_checkpoint"`
	LatestSteps      *int64    `json:"latest_steps"`
	LastModified     float64   `json:"last_modified"`
	Metadata         *Metadata `json:"metadata"`
	Status           *Snapshot `json:"status"`
}

// CollectRuns lists every run under root, most recent activity first.
// Activity is the newest checkpoint's mtime, falling back to the
// directory's own.
func CollectRuns(root string) []RunSummary {
	entries, err := os.ReadDir(root)
	if err != nil {
		return []RunSummary{}
	}

	runs := []RunSummary{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := New(root, entry.Name())

		summary := RunSummary{
			Name:     entry.Name(),
			Path:     dir.Path(),
			Metadata: ReadMetadata(dir.MetadataFile()),
			Status:   ReadStatus(dir.StatusFile()),
		}

		if latest := LatestCheckpoint(dir.Path()); latest != nil {
			path := latest.Path
			summary.LatestCheckpoint = &path
			summary.LatestSteps = latest.Steps
			summary.LastModified = latest.MTime
		} else if info, err := os.Stat(dir.Path()); err == nil {
			summary.LastModified = float64(info.ModTime().UnixNano()) / 1e9
		}

		runs = append(runs, summary)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].LastModified > runs[j].LastModified
	})
	return runs
}

