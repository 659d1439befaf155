package config

import (
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validTrainMap must pass with zero warnings on any host, so num_envs
// stays at 1: the CPU-count advisory compares against runtime.NumCPU().
func validTrainMap() map[string]any {
	return map[string]any{
		"num_envs":         1,
		"batch_size":       8,
		"total_multiplier": 100,
		"n_epochs":         1,
		"gamma":            0.997,
		"ent_coef":         0.01,
	}
}

func validEnvMap() map[string]any {
	return map[string]any{
		"action_freq":    24,
		"max_steps":      2048,
		"reward_scale":   0.5,
		"explore_weight": 0.25,
	}
}

func TestValidateTrainConfigAccepts(t *testing.T) {
	errs, warns := ValidateTrainConfig(validTrainMap())
	assert.Empty(t, errs)
	assert.Empty(t, warns)
}

func TestValidateTrainConfigDivisibility(t *testing.T) {
	tests := []struct {
		numEnvs   int
		batchSize int
		wantErr   bool
	}{
		{1, 1, false},
		{4, 8, false},
		{8, 256, false},
		{16, 512, false},
		{3, 8, true},
		{7, 256, true},
		{5, 512, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.numEnvs, tt.batchSize), func(t *testing.T) {
			m := validTrainMap()
			m["num_envs"] = tt.numEnvs
			m["batch_size"] = tt.batchSize
			errs, _ := ValidateTrainConfig(m)

			divErrs := 0
			for _, e := range errs {
				if strings.Contains(e, "divisible") {
					divErrs++
				}
			}
			if tt.wantErr {
				assert.Equal(t, 1, divErrs, "expected exactly one divisibility error, got %v", errs)
			} else {
				assert.Zero(t, divErrs, "unexpected divisibility error: %v", errs)
			}
		})
	}
}

func TestValidateTrainConfigGamma(t *testing.T) {
	tests := []struct {
		gamma   any
		wantErr bool
	}{
		{0.997, false},
		{1.0, false},
		{0.5, false},
		{0.0, true},
		{1.5, true},
		{-0.1, true},
		{"high", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.gamma), func(t *testing.T) {
			m := validTrainMap()
			m["gamma"] = tt.gamma
			errs, _ := ValidateTrainConfig(m)

			found := false
			for _, e := range errs {
				if strings.Contains(e, "gamma") {
					found = true
				}
			}
			assert.Equal(t, tt.wantErr, found, "errors: %v", errs)
		})
	}
}

func TestValidateTrainConfigEntCoef(t *testing.T) {
	m := validTrainMap()
	m["ent_coef"] = -0.01
	errs, _ := ValidateTrainConfig(m)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "ent_coef")

	m["ent_coef"] = 0.0
	errs, _ = ValidateTrainConfig(m)
	assert.Empty(t, errs)
}

func TestValidateTrainConfigPositiveInts(t *testing.T) {
	for _, field := range []string{"num_envs", "batch_size", "total_multiplier", "n_epochs"} {
		for _, bad := range []any{0, -1, "four", nil, 2.5} {
			t.Run(fmt.Sprintf("%s=%v", field, bad), func(t *testing.T) {
				m := validTrainMap()
				m[field] = bad
				errs, _ := ValidateTrainConfig(m)

				found := false
				for _, e := range errs {
					if strings.Contains(e, field) {
						found = true
					}
				}
				assert.True(t, found, "expected an error naming %s, got %v", field, errs)
			})
		}
	}
}

func TestValidateTrainConfigNumEnvsWarning(t *testing.T) {
	m := validTrainMap()
	m["num_envs"] = runtime.NumCPU() + 1
	m["batch_size"] = runtime.NumCPU() + 1
	errs, warns := ValidateTrainConfig(m)
	assert.Empty(t, errs)
	require.NotEmpty(t, warns)
	assert.Contains(t, warns[0], "num_envs")
	assert.Contains(t, warns[0], "CPU count")
}

func TestValidateEnvConfigAccepts(t *testing.T) {
	errs, warns := ValidateEnvConfig(validEnvMap())
	assert.Empty(t, errs)
	assert.Empty(t, warns)
}

func TestValidateEnvConfigRequiredFields(t *testing.T) {
	for _, field := range []string{"action_freq", "max_steps"} {
		t.Run(field, func(t *testing.T) {
			m := validEnvMap()
			m[field] = 0
			errs, _ := ValidateEnvConfig(m)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], field)
		})
	}
}

func TestValidateEnvConfigWarnings(t *testing.T) {
	m := validEnvMap()
	m["reward_scale"] = -1.0
	m["explore_weight"] = -0.5
	errs, warns := ValidateEnvConfig(m)
	assert.Empty(t, errs, "non-positive scale and negative weight are legal")
	assert.Len(t, warns, 2)
}

func TestValidateNeverPanicsOnJunk(t *testing.T) {
	junk := map[string]any{
		"action_freq": []string{"a"},
		"max_steps":   map[string]any{},
		"num_envs":    struct{}{},
		"batch_size":  nil,
		"gamma":       []int{1},
		"ent_coef":    "x",
	}
	assert.NotPanics(t, func() {
		ValidateEnvConfig(junk)
		ValidateTrainConfig(junk)
	})
}
