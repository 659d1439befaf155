package rundir

import (
	"bufio"
	"encoding/json"
	"os"
)

// EvalRecord is one evaluation pass as appended to eval.jsonl.
type EvalRecord struct {
	Timestamp        float64   `json:"timestamp"`
	TimestepsWhenRan int64     `json:"timesteps_when_ran"`
	Episodes         int       `json:"episodes"`
	MeanReward       float64   `json:"mean_reward"`
	MeanLength       float64   `json:"mean_length"`
	Rewards          []float64 `json:"rewards"`
	Lengths          []int     `json:"lengths"`

	MeanBattlesStarted float64 `json:"mean_battles_started"`
	MeanBattlesWon     float64 `json:"mean_battles_won"`
	MeanBadgesEarned   float64 `json:"mean_badges_earned"`
	MeanLevelsGained   float64 `json:"mean_levels_gained"`
	SuccessRate        float64 `json:"success_rate"`

	// Per-episode detail arrays matching Rewards/Lengths by index.
	BattlesStarted []float64 `json:"battles_started"`
	BattlesWon     []float64 `json:"battles_won"`
	BadgesEarned   []float64 `json:"badges_earned"`
	LevelsGained   []float64 `json:"levels_gained"`
}

// ReadEvalLog returns eval records newest-first, keeping at most limit
// entries (0 means all). Blank and malformed lines are skipped so a
// partially appended log still reads.
func ReadEvalLog(path string, limit int) []EvalRecord {
	f, err := os.Open(path)
	if err != nil {
		return []EvalRecord{}
	}
	defer f.Close()

	var rows []EvalRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec EvalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		rows = append(rows, rec)
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	// Newest first
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if rows == nil {
		rows = []EvalRecord{}
	}
	return rows
}
