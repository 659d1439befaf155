package timeutils

import (
	"fmt"
	"time"
)

// UnixSeconds converts a time to fractional seconds since the epoch,
// the representation used in status snapshots and eval records.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnixSeconds converts fractional epoch seconds back to a time.
func FromUnixSeconds(s float64) time.Time {
	sec := int64(s)
	nsec := int64((s - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// FormatDuration renders a duration as a compact human string, e.g.
// "42s", "12m03s", "3h07m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Age renders how long ago t was, e.g. "5m12s ago".
func Age(t time.Time) string {
	return FormatDuration(time.Since(t)) + " ago"
}

// ETA estimates the remaining wall-clock time for a run given the steps
// still to do and the most recent throughput. Returns false when no
// estimate is possible (zero or unknown throughput, nothing remaining).
func ETA(stepsRemaining int64, throughput *float64) (time.Duration, bool) {
	if stepsRemaining <= 0 || throughput == nil || *throughput <= 0 {
		return 0, false
	}
	secs := float64(stepsRemaining) / *throughput
	return time.Duration(secs * float64(time.Second)), true
}
