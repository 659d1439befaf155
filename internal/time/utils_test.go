package timeutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnixSecondsRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 45, 500_000_000, time.UTC)
	secs := UnixSeconds(now)
	back := FromUnixSeconds(secs)
	assert.WithinDuration(t, now, back, time.Millisecond)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-5 * time.Second, "0s"},
		{42 * time.Second, "42s"},
		{12*time.Minute + 3*time.Second, "12m03s"},
		{3*time.Hour + 7*time.Minute, "3h07m"},
		{25 * time.Hour, "25h00m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d), tt.d.String())
	}
}

func TestETA(t *testing.T) {
	rate := 50.0
	eta, ok := ETA(1000, &rate)
	assert.True(t, ok)
	assert.Equal(t, 20*time.Second, eta)

	_, ok = ETA(0, &rate)
	assert.False(t, ok)

	_, ok = ETA(1000, nil)
	assert.False(t, ok)

	zero := 0.0
	_, ok = ETA(1000, &zero)
	assert.False(t, ok)
}
