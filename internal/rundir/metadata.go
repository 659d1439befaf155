package rundir

import (
	"encoding/json"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	timeutils "github.com/pokered-rl/trainctl/internal/time"
)

// Metadata is the write-once metadata.json describing how a run was
// launched. It is written before training starts and never updated.
type Metadata struct {
	RunID   string `json:"run_id"`
	RunName string `json:"run_name"`
	RunDir  string `json:"run_dir"`

	EnvConfig   map[string]any `json:"env_config"`
	TrainConfig map[string]any `json:"train_config"`

	StreamEnabled   bool `json:"stream_enabled"`
	TrackingEnabled bool `json:"tracking_enabled"`

	Seed        int64   `json:"seed"`
	VCSRevision string  `json:"vcs_revision,omitempty"`
	ResumedFrom string  `json:"resumed_from,omitempty"`
	CreatedAt   float64 `json:"created_at"`
}

// NewMetadata stamps identity and provenance onto a run description.
func NewMetadata(d Dir, envConf, trainConf map[string]any) Metadata {
	return Metadata{
		RunID:       uuid.NewString(),
		RunName:     d.Name,
		RunDir:      d.Path(),
		EnvConfig:   envConf,
		TrainConfig: trainConf,
		VCSRevision: vcsRevision(),
		CreatedAt:   timeutils.UnixSeconds(time.Now()),
	}
}

// WriteMetadata persists the run metadata atomically.
func WriteMetadata(d Dir, md Metadata) error {
	return AtomicWriteJSON(d.MetadataFile(), md)
}

// ReadMetadata parses a run's metadata. Missing or malformed reads as
// nil, same contract as ReadStatus.
func ReadMetadata(path string) *Metadata {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil
	}
	return &md
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			return setting.Value
		}
	}
	return ""
}
