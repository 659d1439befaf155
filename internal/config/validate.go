package config

import (
	"fmt"
	"runtime"
)

// ValidateEnvConfig checks an environment-configuration document and
// returns hard errors alongside advisory warnings. It never panics:
// missing or mistyped values become errors.
func ValidateEnvConfig(envConf map[string]any) (errors []string, warnings []string) {
	errors = ensurePositiveInt(envConf["action_freq"], "action_freq", errors)
	errors = ensurePositiveInt(envConf["max_steps"], "max_steps", errors)

	if raw, ok := envConf["reward_scale"]; ok && raw != nil {
		if scale, ok := asNumber(raw); ok && scale <= 0 {
			warnings = append(warnings, fmt.Sprintf("reward_scale is non-positive (%v); training may be unstable.", raw))
		}
	}

	if raw, ok := envConf["explore_weight"]; ok && raw != nil {
		if weight, ok := asNumber(raw); ok && weight < 0 {
			warnings = append(warnings, "explore_weight is negative; exploration bonuses will penalize the agent.")
		}
	}

	return errors, warnings
}

// ValidateTrainConfig checks a training-configuration document.
func ValidateTrainConfig(trainConf map[string]any) (errors []string, warnings []string) {
	errors = ensurePositiveInt(trainConf["num_envs"], "num_envs", errors)
	errors = ensurePositiveInt(trainConf["batch_size"], "batch_size", errors)
	errors = ensurePositiveInt(trainConf["total_multiplier"], "total_multiplier", errors)
	errors = ensurePositiveInt(trainConf["n_epochs"], "n_epochs", errors)

	numEnvs, numOK := asInt(trainConf["num_envs"])
	batchSize, batchOK := asInt(trainConf["batch_size"])
	if numOK && batchOK && numEnvs > 0 && batchSize%numEnvs != 0 {
		errors = append(errors, fmt.Sprintf("batch_size (%d) must be divisible by num_envs (%d) for even minibatches.", batchSize, numEnvs))
	}

	if raw, ok := trainConf["gamma"]; ok && raw != nil {
		if gamma, ok := asNumber(raw); !ok || gamma <= 0 || gamma > 1 {
			errors = append(errors, fmt.Sprintf("gamma must be in (0, 1]; got %v", raw))
		}
	}

	if raw, ok := trainConf["ent_coef"]; ok && raw != nil {
		if entCoef, ok := asNumber(raw); !ok || entCoef < 0 {
			errors = append(errors, fmt.Sprintf("ent_coef must be >= 0; got %v", raw))
		}
	}

	if cpus := runtime.NumCPU(); numOK && numEnvs > cpus {
		warnings = append(warnings, fmt.Sprintf("num_envs (%d) exceeds CPU count (%d); consider lowering for stability.", numEnvs, cpus))
	}

	return errors, warnings
}

func ensurePositiveInt(value any, name string, errors []string) []string {
	if n, ok := asInt(value); !ok || n < 1 {
		errors = append(errors, fmt.Sprintf("%s must be a positive integer (got %v)", name, value))
	}
	return errors
}

// asInt accepts integer-typed values and whole-number floats, which is
// what decoded JSON hands us for integral fields.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int64(v)) {
			return int(v), true
		}
	case float32:
		if float64(v) == float64(int64(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
